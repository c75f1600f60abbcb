// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clangutil

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// CommandLine returns the -cc1 command line of inv.
func (inv *Invocation) CommandLine() []string {
	var args []string
	inv.generate(func(arg string) { args = append(args, arg) }, true)
	return args
}

// CommandLineWithoutInputs returns the -cc1 command line of inv without
// input files.
func (inv *Invocation) CommandLineWithoutInputs() []string {
	var args []string
	inv.generate(func(arg string) { args = append(args, arg) }, false)
	return args
}

// GenerateArgs calls emit for each -cc1 argument of inv, without inputs.
func (inv *Invocation) GenerateArgs(emit func(string)) {
	inv.generate(emit, false)
}

func (inv *Invocation) generate(emit func(string), withInputs bool) {
	str := func(flag, v string) {
		if v != "" {
			emit(flag)
			emit(v)
		}
	}
	joined := func(flag, v string) {
		if v != "" {
			emit(flag + v)
		}
	}
	list := func(flag string, vs []string) {
		for _, v := range vs {
			emit(flag + v)
		}
	}
	listSep := func(flag string, vs []string) {
		for _, v := range vs {
			emit(flag)
			emit(v)
		}
	}
	boolean := func(flag string, v bool) {
		if v {
			emit(flag)
		}
	}

	emit("-cc1")
	fe := inv.frontend
	emit(fe.ProgramAction.String())

	// language.
	lang := inv.lang
	joined("-std=", lang.LangStd)
	boolean("-fmodules", lang.Modules)
	boolean("-fimplicit-modules", lang.ImplicitModules)
	boolean("-fmodules-codegen", lang.ModulesCodegen)
	joined("-fmodule-name=", lang.ModuleName)
	list("-fsanitize=", lang.Sanitize)
	list("-fsanitize-ignorelist=", lang.NoSanitizeFiles)

	// header search.
	hs := inv.hs
	str("-isysroot", hs.Sysroot)
	str("-resource-dir", hs.ResourceDir)
	joined("-fmodules-cache-path=", hs.ModuleCachePath)
	str("-fmodules-user-build-path", hs.ModuleUserBuildPath)
	for _, e := range hs.UserEntries {
		emit(e.flag())
		emit(e.Path)
	}
	for _, p := range hs.SystemHeaderPrefixes {
		if p.IsSystemHeader {
			emit("--system-header-prefix=" + p.Prefix)
		} else {
			emit("--no-system-header-prefix=" + p.Prefix)
		}
	}
	names := make([]string, 0, len(hs.PrebuiltModuleFiles))
	for name := range hs.PrebuiltModuleFiles {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		emit("-fmodule-file=" + name + "=" + hs.PrebuiltModuleFiles[name])
	}
	list("-fprebuilt-module-path=", hs.PrebuiltModulePaths)
	listSep("-ivfsoverlay", hs.VFSOverlayFiles)
	macros := make([]string, 0, len(hs.ModulesIgnoreMacros))
	for m, ok := range hs.ModulesIgnoreMacros {
		if ok {
			macros = append(macros, m)
		}
	}
	slices.Sort(macros)
	list("-fmodules-ignore-macro=", macros)
	boolean("-fimplicit-module-maps", hs.ImplicitModuleMaps)
	boolean("-fmodules-validate-once-per-build-session", hs.ModulesValidateOncePerBuildSession)
	if hs.BuildSessionTimestamp != 0 {
		emit("-fbuild-session-timestamp=" + strconv.FormatInt(hs.BuildSessionTimestamp, 10))
	}
	boolean("-fno-modules-prune-non-affecting-module-map-files", hs.KeepNonAffectingModuleMaps)

	// preprocessor.
	pp := inv.pp
	for _, m := range pp.Macros {
		if m.IsUndef {
			emit("-U" + m.Def)
		} else {
			emit("-D" + m.Def)
		}
	}
	listSep("-include", pp.Includes)
	listSep("-imacros", pp.MacroIncludes)
	str("-include-pch", pp.ImplicitPCHInclude)

	// diagnostics.
	diag := inv.diag
	list("-W", diag.Warnings)
	list("-R", diag.Remarks)
	list("-Wundef-prefix=", diag.UndefPrefixes)
	str("-serialize-diagnostic-file", diag.DiagnosticSerializationFile)
	list("-Wsystem-headers-in-module=", diag.SystemHeaderWarningsModules)

	// codegen.
	cg := inv.codegen
	if cg.DwarfVersion != 0 {
		emit("-dwarf-version=" + strconv.Itoa(cg.DwarfVersion))
	}
	joined("-fdebug-compilation-dir=", cg.DebugCompilationDir)
	joined("-fcoverage-compilation-dir=", cg.CoverageCompilationDir)
	joined("-coverage-data-file=", cg.CoverageDataFile)
	joined("-coverage-notes-file=", cg.CoverageNotesFile)
	joined("-fprofile-instrument-use-path=", cg.ProfileInstrumentUsePath)
	joined("-fprofile-sample-use=", cg.SampleProfileFile)
	joined("-fprofile-remapping-file=", cg.ProfileRemappingFile)
	str("-main-file-name", cg.MainFileName)
	str("-dwarf-debug-flags", cg.DwarfDebugFlags)

	// file system.
	str("-working-directory", inv.fs.WorkingDir)

	// dependency output.
	dep := inv.depOutput
	str("-dependency-file", dep.OutputFile)
	listSep("-MT", dep.Targets)
	for _, d := range dep.ExtraDeps {
		emit("-fdepfile-entry=" + d.Path)
	}
	boolean("-sys-header-deps", dep.IncludeSystemHeaders)

	// frontend.
	str("-o", fe.OutputFile)
	list("-fmodule-map-file=", fe.ModuleMapFiles)
	list("-fmodule-file=", fe.ModuleFiles)
	list("-fmodules-embed-file=", fe.ModulesEmbedFiles)
	listSep("-ast-merge", fe.ASTMergeFiles)
	joined("-foverride-record-layout=", fe.OverrideRecordLayoutsFile)
	joined("-stats-file=", fe.StatsFile)
	if loc := fe.CodeCompletionAt; loc.FileName != "" {
		emit("-code-completion-at")
		emit(fmt.Sprintf("%s:%d:%d", loc.FileName, loc.Line, loc.Column))
	}
	listSep("-mllvm", fe.LLVMArgs)
	boolean("-fsystem-module", fe.IsSystemModule)
	if x := fe.DashX.spelling(); x != "" {
		emit("-x")
		emit(x)
	}
	if withInputs {
		for _, in := range fe.Inputs {
			emit(in.File)
		}
	}
}

func (e Entry) flag() string {
	switch e.Group {
	case GroupQuoted:
		return "-iquote"
	case GroupSystem:
		if e.IsFramework {
			return "-iframework"
		}
		if !e.IgnoreSysRoot {
			return "-iwithsysroot"
		}
		return "-isystem"
	case GroupAfter:
		return "-idirafter"
	}
	if e.IsFramework {
		return "-F"
	}
	return "-I"
}

func (k InputKind) spelling() string {
	if k.Lang == LangUnknown {
		return ""
	}
	switch k.Format {
	case FormatModuleMap:
		return string(k.Lang) + "-module-map"
	case FormatPrecompiled:
		return string(k.Lang) + "-precompiled"
	}
	return string(k.Lang)
}

func parseInputKind(s string) InputKind {
	switch {
	case strings.HasSuffix(s, "-module-map"):
		return InputKind{Lang: Language(strings.TrimSuffix(s, "-module-map")), Format: FormatModuleMap}
	case strings.HasSuffix(s, "-precompiled"):
		return InputKind{Lang: Language(strings.TrimSuffix(s, "-precompiled")), Format: FormatPrecompiled}
	}
	return InputKind{Lang: Language(s)}
}

func inputKindFor(fname string, dashX InputKind) InputKind {
	switch filepath.Ext(fname) {
	case ".modulemap", ".map":
		return InputKind{Lang: dashX.Lang, Format: FormatModuleMap}
	case ".pcm", ".pch":
		return InputKind{Lang: dashX.Lang, Format: FormatPrecompiled}
	}
	if dashX.Lang != LangUnknown {
		return dashX
	}
	switch filepath.Ext(fname) {
	case ".c":
		return InputKind{Lang: LangC}
	case ".cc", ".cpp", ".cxx", ".cppm", ".ixx", ".h", ".hh", ".hpp":
		return InputKind{Lang: LangCXX}
	case ".m":
		return InputKind{Lang: LangObjC}
	case ".mm":
		return InputKind{Lang: LangObjCXX}
	case ".S", ".s":
		return InputKind{Lang: LangAsm}
	case ".ll", ".bc":
		return InputKind{Lang: LangLLVMIR}
	}
	return InputKind{}
}

// Parse parses a -cc1 command line as generated by CommandLine.
// A leading compiler path and "-cc1" are skipped.
func Parse(args []string) (*Invocation, error) {
	inv := New()
	lang, fe, hs, pp := inv.lang, inv.frontend, inv.hs, inv.pp
	diag, cg, dep := inv.diag, inv.codegen, inv.depOutput

	if len(args) > 0 && isCompiler(args[0]) {
		args = args[1:]
	}
	actions := make(map[string]ActionKind, len(actionFlags))
	for k, v := range actionFlags {
		actions[v] = k
	}
	var inputs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("missing value for %q", arg)
			}
			i++
			return args[i], nil
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			inputs = append(inputs, arg)
			continue
		}
		if a, ok := actions[arg]; ok {
			fe.ProgramAction = a
			continue
		}

		// flags with separate value.
		var dst *string
		var entry *Entry
		switch arg {
		case "-isysroot":
			dst = &hs.Sysroot
		case "-resource-dir":
			dst = &hs.ResourceDir
		case "-fmodules-user-build-path":
			dst = &hs.ModuleUserBuildPath
		case "-include-pch":
			dst = &pp.ImplicitPCHInclude
		case "-serialize-diagnostic-file":
			dst = &diag.DiagnosticSerializationFile
		case "-main-file-name":
			dst = &cg.MainFileName
		case "-dwarf-debug-flags":
			dst = &cg.DwarfDebugFlags
		case "-working-directory":
			dst = &inv.fs.WorkingDir
		case "-dependency-file":
			dst = &dep.OutputFile
		case "-o":
			dst = &fe.OutputFile
		case "-I":
			entry = &Entry{Group: GroupAngled, IgnoreSysRoot: true}
		case "-F":
			entry = &Entry{Group: GroupAngled, IsFramework: true, IgnoreSysRoot: true}
		case "-iquote":
			entry = &Entry{Group: GroupQuoted, IgnoreSysRoot: true}
		case "-isystem":
			entry = &Entry{Group: GroupSystem, IgnoreSysRoot: true}
		case "-iwithsysroot":
			entry = &Entry{Group: GroupSystem}
		case "-iframework":
			entry = &Entry{Group: GroupSystem, IsFramework: true, IgnoreSysRoot: true}
		case "-idirafter":
			entry = &Entry{Group: GroupAfter, IgnoreSysRoot: true}
		case "-ivfsoverlay", "-include", "-imacros", "-MT", "-ast-merge", "-mllvm", "-x", "-code-completion-at", "-D", "-U":
			v, err := next()
			if err != nil {
				return nil, err
			}
			switch arg {
			case "-ivfsoverlay":
				hs.VFSOverlayFiles = append(hs.VFSOverlayFiles, v)
			case "-include":
				pp.Includes = append(pp.Includes, v)
			case "-imacros":
				pp.MacroIncludes = append(pp.MacroIncludes, v)
			case "-MT":
				dep.Targets = append(dep.Targets, v)
			case "-ast-merge":
				fe.ASTMergeFiles = append(fe.ASTMergeFiles, v)
			case "-D":
				pp.Macros = append(pp.Macros, Macro{Def: v})
			case "-U":
				pp.Macros = append(pp.Macros, Macro{Def: v, IsUndef: true})
			case "-mllvm":
				fe.LLVMArgs = append(fe.LLVMArgs, v)
			case "-x":
				fe.DashX = parseInputKind(v)
			case "-code-completion-at":
				loc, err := parseSourceLocation(v)
				if err != nil {
					return nil, err
				}
				fe.CodeCompletionAt = loc
			}
			continue
		}
		if dst != nil || entry != nil {
			v, err := next()
			if err != nil {
				return nil, err
			}
			if dst != nil {
				*dst = v
				continue
			}
			entry.Path = v
			hs.UserEntries = append(hs.UserEntries, *entry)
			continue
		}

		// boolean flags.
		var b *bool
		switch arg {
		case "-fmodules":
			b = &lang.Modules
		case "-fimplicit-modules":
			b = &lang.ImplicitModules
		case "-fmodules-codegen":
			b = &lang.ModulesCodegen
		case "-fimplicit-module-maps":
			b = &hs.ImplicitModuleMaps
		case "-fmodules-validate-once-per-build-session":
			b = &hs.ModulesValidateOncePerBuildSession
		case "-fno-modules-prune-non-affecting-module-map-files":
			b = &hs.KeepNonAffectingModuleMaps
		case "-sys-header-deps":
			b = &dep.IncludeSystemHeaders
		case "-fsystem-module":
			b = &fe.IsSystemModule
		case "-cc1":
			continue
		}
		if b != nil {
			*b = true
			continue
		}

		// joined flags.
		if err := parseJoined(inv, arg); err != nil {
			return nil, err
		}
	}
	for _, in := range inputs {
		fe.Inputs = append(fe.Inputs, Input{File: in, Kind: inputKindFor(in, fe.DashX)})
	}
	return inv, nil
}

func isCompiler(arg string) bool {
	if strings.HasPrefix(arg, "-") {
		return false
	}
	base := filepath.Base(arg)
	return strings.Contains(base, "clang") || strings.Contains(base, "gcc") || strings.Contains(base, "g++")
}

func parseJoined(inv *Invocation, arg string) error {
	lang, fe, hs, pp := inv.lang, inv.frontend, inv.hs, inv.pp
	diag, cg, dep := inv.diag, inv.codegen, inv.depOutput

	cut := func(prefix string) (string, bool) {
		return strings.CutPrefix(arg, prefix)
	}
	if v, ok := cut("-std="); ok {
		lang.LangStd = v
		return nil
	}
	if v, ok := cut("-fmodule-name="); ok {
		lang.ModuleName = v
		return nil
	}
	if v, ok := cut("-fsanitize-ignorelist="); ok {
		lang.NoSanitizeFiles = append(lang.NoSanitizeFiles, v)
		return nil
	}
	if v, ok := cut("-fsanitize="); ok {
		lang.Sanitize = append(lang.Sanitize, v)
		return nil
	}
	if v, ok := cut("-fmodules-cache-path="); ok {
		hs.ModuleCachePath = v
		return nil
	}
	if v, ok := cut("--system-header-prefix="); ok {
		hs.SystemHeaderPrefixes = append(hs.SystemHeaderPrefixes, SystemHeaderPrefix{Prefix: v, IsSystemHeader: true})
		return nil
	}
	if v, ok := cut("--no-system-header-prefix="); ok {
		hs.SystemHeaderPrefixes = append(hs.SystemHeaderPrefixes, SystemHeaderPrefix{Prefix: v})
		return nil
	}
	if v, ok := cut("-fmodule-file="); ok {
		if name, path, ok := strings.Cut(v, "="); ok {
			if hs.PrebuiltModuleFiles == nil {
				hs.PrebuiltModuleFiles = make(map[string]string)
			}
			hs.PrebuiltModuleFiles[name] = path
			return nil
		}
		fe.ModuleFiles = append(fe.ModuleFiles, v)
		return nil
	}
	if v, ok := cut("-fprebuilt-module-path="); ok {
		hs.PrebuiltModulePaths = append(hs.PrebuiltModulePaths, v)
		return nil
	}
	if v, ok := cut("-fmodules-ignore-macro="); ok {
		if hs.ModulesIgnoreMacros == nil {
			hs.ModulesIgnoreMacros = make(map[string]bool)
		}
		hs.ModulesIgnoreMacros[v] = true
		return nil
	}
	if v, ok := cut("-fbuild-session-timestamp="); ok {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("bad %q: %w", arg, err)
		}
		hs.BuildSessionTimestamp = ts
		return nil
	}
	if v, ok := cut("-D"); ok {
		pp.Macros = append(pp.Macros, Macro{Def: v})
		return nil
	}
	if v, ok := cut("-U"); ok {
		pp.Macros = append(pp.Macros, Macro{Def: v, IsUndef: true})
		return nil
	}
	if v, ok := cut("-Wundef-prefix="); ok {
		diag.UndefPrefixes = append(diag.UndefPrefixes, v)
		return nil
	}
	if v, ok := cut("-Wsystem-headers-in-module="); ok {
		diag.SystemHeaderWarningsModules = append(diag.SystemHeaderWarningsModules, v)
		return nil
	}
	if v, ok := cut("-W"); ok {
		diag.Warnings = append(diag.Warnings, v)
		return nil
	}
	if v, ok := cut("-R"); ok {
		diag.Remarks = append(diag.Remarks, v)
		return nil
	}
	if v, ok := cut("-dwarf-version="); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("bad %q: %w", arg, err)
		}
		cg.DwarfVersion = n
		return nil
	}
	for prefix, dst := range map[string]*string{
		"-fdebug-compilation-dir=":       &cg.DebugCompilationDir,
		"-fcoverage-compilation-dir=":    &cg.CoverageCompilationDir,
		"-coverage-data-file=":           &cg.CoverageDataFile,
		"-coverage-notes-file=":          &cg.CoverageNotesFile,
		"-fprofile-instrument-use-path=": &cg.ProfileInstrumentUsePath,
		"-fprofile-sample-use=":          &cg.SampleProfileFile,
		"-fprofile-remapping-file=":      &cg.ProfileRemappingFile,
		"-foverride-record-layout=":      &fe.OverrideRecordLayoutsFile,
		"-stats-file=":                   &fe.StatsFile,
	} {
		if v, ok := cut(prefix); ok {
			*dst = v
			return nil
		}
	}
	if v, ok := cut("-fdepfile-entry="); ok {
		dep.ExtraDeps = append(dep.ExtraDeps, ExtraDep{Path: v})
		return nil
	}
	if v, ok := cut("-fmodule-map-file="); ok {
		fe.ModuleMapFiles = append(fe.ModuleMapFiles, v)
		return nil
	}
	if v, ok := cut("-fmodules-embed-file="); ok {
		fe.ModulesEmbedFiles = append(fe.ModulesEmbedFiles, v)
		return nil
	}
	if v, ok := cut("-I"); ok {
		hs.UserEntries = append(hs.UserEntries, Entry{Path: v, Group: GroupAngled, IgnoreSysRoot: true})
		return nil
	}
	if v, ok := cut("-isystem"); ok {
		hs.UserEntries = append(hs.UserEntries, Entry{Path: v, Group: GroupSystem, IgnoreSysRoot: true})
		return nil
	}
	return fmt.Errorf("unknown argument %q", arg)
}

func parseSourceLocation(s string) (SourceLocation, error) {
	rest, col, ok := cutLast(s, ":")
	if !ok {
		return SourceLocation{}, fmt.Errorf("bad source location %q", s)
	}
	fname, line, ok := cutLast(rest, ":")
	if !ok {
		return SourceLocation{}, fmt.Errorf("bad source location %q", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil {
		return SourceLocation{}, fmt.Errorf("bad source location %q: %w", s, err)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return SourceLocation{}, fmt.Errorf("bad source location %q: %w", s, err)
	}
	return SourceLocation{FileName: fname, Line: l, Column: c}, nil
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
