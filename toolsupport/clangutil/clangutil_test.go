// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clangutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCommandLine(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{
			name: "module-build",
			args: []string{
				"-cc1", "-emit-module",
				"-std=c++20", "-fmodules", "-fmodule-name=std",
				"-isysroot", "/sdk",
				"-resource-dir", "/clang/lib/clang/20",
				"-I", "/src/include",
				"-iquote", "/src/quoted",
				"-isystem", "/sdk/usr/include",
				"-iwithsysroot", "/usr/include",
				"-fmodule-file=a=/out/a.pcm",
				"-fmodule-file=b=/out/b.pcm",
				"-ivfsoverlay", "/out/overlay.yaml",
				"-DFOO=1", "-UBAR",
				"-Wall", "-Wno-unused",
				"-Rmodule-build",
				"-dwarf-version=5",
				"-fdebug-compilation-dir=/",
				"-dependency-file", "-",
				"-MT", "out/a.pcm",
				"-fdepfile-entry=/src/ignorelist.txt",
				"-o", "/out/std.pcm",
				"-fmodule-map-file=/src/module.modulemap",
				"-fmodule-file=/out/prebuilt.pcm",
				"-fsystem-module",
				"-x", "c++",
				"/sdk/usr/include/module.modulemap",
			},
		},
		{
			name: "translation-unit",
			args: []string{
				"-cc1", "-emit-obj",
				"-fmodules", "-fimplicit-modules",
				"-fmodules-cache-path=/tmp/cache",
				"-fimplicit-module-maps",
				"-fmodules-validate-once-per-build-session",
				"-fbuild-session-timestamp=1700000000",
				"-include", "prefix.h",
				"-include-pch", "pch.h.pch",
				"-main-file-name", "a.cc",
				"-working-directory", "/src",
				"-code-completion-at", "a.cc:10:4",
				"-mllvm", "-inline-threshold=0",
				"-x", "c++",
				"a.cc",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := Parse(tc.args)
			if err != nil {
				t.Fatalf("Parse(%q)=_, %v; want nil error", tc.args, err)
			}
			if diff := cmp.Diff(tc.args, inv.CommandLine()); diff != "" {
				t.Errorf("Parse(args).CommandLine() diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestParse_compiler(t *testing.T) {
	inv, err := Parse([]string{"/usr/bin/clang++", "-cc1", "-fsyntax-only", "-I", "inc", "a.cc"})
	if err != nil {
		t.Fatalf("Parse=_, %v; want nil error", err)
	}
	want := []Input{{File: "a.cc", Kind: InputKind{Lang: LangCXX}}}
	if diff := cmp.Diff(want, inv.FrontendOpts().Inputs); diff != "" {
		t.Errorf("inputs diff -want +got:\n%s", diff)
	}
	if got, want := inv.FrontendOpts().ProgramAction, ActionParseSyntaxOnly; got != want {
		t.Errorf("action=%v; want %v", got, want)
	}
}

func TestParse_separateMacros(t *testing.T) {
	inv, err := Parse([]string{"-cc1", "-D", "FOO=1", "-U", "BAR", "-DBAZ", "a.cc"})
	if err != nil {
		t.Fatalf("Parse=_, %v; want nil error", err)
	}
	want := []Macro{
		{Def: "FOO=1"},
		{Def: "BAR", IsUndef: true},
		{Def: "BAZ"},
	}
	if diff := cmp.Diff(want, inv.PreprocessorOpts().Macros); diff != "" {
		t.Errorf("macros diff -want +got:\n%s", diff)
	}
	wantInputs := []Input{{File: "a.cc", Kind: InputKind{Lang: LangCXX}}}
	if diff := cmp.Diff(wantInputs, inv.FrontendOpts().Inputs); diff != "" {
		t.Errorf("inputs diff -want +got:\n%s", diff)
	}
	_, err = Parse([]string{"-cc1", "-D"})
	if err == nil {
		t.Errorf("Parse(-D)=_, nil; want error")
	}
}

func TestParse_unknown(t *testing.T) {
	_, err := Parse([]string{"-cc1", "-fno-such-flag"})
	if err == nil {
		t.Errorf("Parse(-fno-such-flag)=_, nil; want error")
	}
}

func TestCommandLineWithoutInputs(t *testing.T) {
	inv := New()
	fe := inv.MutFrontendOpts()
	fe.ProgramAction = ActionGenerateModule
	fe.DashX = InputKind{Lang: LangCXX}
	fe.Inputs = []Input{{File: "/src/module.modulemap", Kind: InputKind{Lang: LangCXX, Format: FormatModuleMap}}}
	got := inv.CommandLineWithoutInputs()
	want := []string{"-cc1", "-emit-module", "-x", "c++"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CommandLineWithoutInputs() diff -want +got:\n%s", diff)
	}
	var emitted []string
	inv.GenerateArgs(func(arg string) { emitted = append(emitted, arg) })
	if diff := cmp.Diff(want, emitted); diff != "" {
		t.Errorf("GenerateArgs diff -want +got:\n%s", diff)
	}
}

func TestClone_copyOnWrite(t *testing.T) {
	base := New()
	base.MutHeaderSearchOpts().UserEntries = []Entry{{Path: "/a", IgnoreSysRoot: true}}
	base.MutLangOpts().ModuleName = "base"

	c := base.Clone()
	if c.HeaderSearchOpts() != base.HeaderSearchOpts() {
		t.Errorf("Clone doesn't share header search options")
	}
	c.MutHeaderSearchOpts().UserEntries = append(c.HeaderSearchOpts().UserEntries, Entry{Path: "/b", IgnoreSysRoot: true})
	c.MutLangOpts().ModuleName = "clone"

	if got := len(base.HeaderSearchOpts().UserEntries); got != 1 {
		t.Errorf("base entries=%d; want 1", got)
	}
	if got := base.LangOpts().ModuleName; got != "base" {
		t.Errorf("base module name=%q; want %q", got, "base")
	}
	if got := c.LangOpts().ModuleName; got != "clone" {
		t.Errorf("clone module name=%q; want %q", got, "clone")
	}
	if c.PreprocessorOpts() != base.PreprocessorOpts() {
		t.Errorf("unmodified group is not shared")
	}

	// base was marked shared by Clone, so its writes must not leak to c.
	base.MutDiagnosticOpts().Warnings = []string{"all"}
	if got := c.DiagnosticOpts().Warnings; len(got) != 0 {
		t.Errorf("clone warnings=%q; want none", got)
	}
}

func TestDeepClone(t *testing.T) {
	base := New()
	base.MutHeaderSearchOpts().PrebuiltModuleFiles = map[string]string{"a": "/a.pcm"}
	c := base.DeepClone()
	c.HeaderSearchOpts().PrebuiltModuleFiles["b"] = "/b.pcm"
	if got := len(base.HeaderSearchOpts().PrebuiltModuleFiles); got != 1 {
		t.Errorf("base prebuilt module files=%d; want 1", got)
	}
}

func TestIsSafeToIgnoreCWD(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Invocation)
		want   bool
	}{
		{
			name:   "empty",
			modify: func(*Invocation) {},
			want:   true,
		},
		{
			name: "absolute",
			modify: func(inv *Invocation) {
				inv.MutHeaderSearchOpts().Sysroot = "/sdk"
				inv.MutFrontendOpts().Inputs = []Input{{File: "/src/module.modulemap"}}
				inv.MutCodeGenOpts().DebugCompilationDir = "/"
			},
			want: true,
		},
		{
			name: "relative-sysroot-entry",
			modify: func(inv *Invocation) {
				inv.MutHeaderSearchOpts().UserEntries = []Entry{{Path: "usr/include", Group: GroupSystem}}
			},
			want: true,
		},
		{
			name: "relative-include-dir",
			modify: func(inv *Invocation) {
				inv.MutHeaderSearchOpts().UserEntries = []Entry{{Path: "include", IgnoreSysRoot: true}}
			},
			want: false,
		},
		{
			name: "relative-prebuilt-module",
			modify: func(inv *Invocation) {
				inv.MutHeaderSearchOpts().PrebuiltModuleFiles = map[string]string{"a": "out/a.pcm"}
			},
			want: false,
		},
		{
			name: "relative-input",
			modify: func(inv *Invocation) {
				inv.MutFrontendOpts().Inputs = []Input{{File: "module.modulemap"}}
			},
			want: false,
		},
		{
			name: "relative-module-map-file",
			modify: func(inv *Invocation) {
				inv.MutFrontendOpts().ModuleMapFiles = []string{"/a/module.modulemap", "b/module.modulemap"}
			},
			want: false,
		},
		{
			name: "relative-working-dir",
			modify: func(inv *Invocation) {
				inv.MutFileSystemOpts().WorkingDir = "out"
			},
			want: false,
		},
		{
			name: "relative-ignorelist",
			modify: func(inv *Invocation) {
				inv.MutLangOpts().NoSanitizeFiles = []string{"ignorelist.txt"}
			},
			want: false,
		},
		{
			name: "relative-profile",
			modify: func(inv *Invocation) {
				inv.MutCodeGenOpts().SampleProfileFile = "afdo.prof"
			},
			want: false,
		},
		{
			name: "relative-extra-dep",
			modify: func(inv *Invocation) {
				inv.MutDependencyOutputOpts().ExtraDeps = []ExtraDep{{Path: "ignorelist.txt"}}
			},
			want: false,
		},
		{
			name: "relative-code-completion",
			modify: func(inv *Invocation) {
				inv.MutFrontendOpts().CodeCompletionAt = SourceLocation{FileName: "a.cc", Line: 1, Column: 1}
			},
			want: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			inv := New()
			tc.modify(inv)
			got := IsSafeToIgnoreCWD(inv)
			if got != tc.want {
				t.Errorf("IsSafeToIgnoreCWD(%q)=%t; want %t", inv.CommandLine(), got, tc.want)
			}
		})
	}
}

func TestResetBenignCodeGenOptions(t *testing.T) {
	full := CodeGenOptions{
		DwarfVersion:           5,
		DebugCompilationDir:    "/src",
		CoverageCompilationDir: "/src",
		CoverageDataFile:       "a.gcda",
		SampleProfileFile:      "afdo.prof",
		MainFileName:           "a.cc",
		DwarfDebugFlags:        "-g",
	}
	for _, tc := range []struct {
		name   string
		action ActionKind
		lang   LangOptions
		want   CodeGenOptions
	}{
		{
			name:   "module",
			action: ActionGenerateModule,
			want:   CodeGenOptions{DwarfVersion: 5},
		},
		{
			name:   "module-codegen",
			action: ActionGenerateModule,
			lang:   LangOptions{ModulesCodegen: true},
			want: CodeGenOptions{
				DwarfVersion:           5,
				DebugCompilationDir:    "/src",
				CoverageCompilationDir: "/src",
				CoverageDataFile:       "a.gcda",
				SampleProfileFile:      "afdo.prof",
			},
		},
		{
			name:   "pch",
			action: ActionGeneratePCH,
			want: CodeGenOptions{
				DwarfVersion:    5,
				MainFileName:    "a.cc",
				DwarfDebugFlags: "-g",
			},
		},
		{
			name:   "obj",
			action: ActionEmitObj,
			want:   full,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cg := full
			ResetBenignCodeGenOptions(tc.action, &tc.lang, &cg)
			if diff := cmp.Diff(tc.want, cg); diff != "" {
				t.Errorf("ResetBenignCodeGenOptions(%v) diff -want +got:\n%s", tc.action, diff)
			}
		})
	}
}

func TestClearImplicitModuleBuildOptions(t *testing.T) {
	inv, err := Parse([]string{"-cc1", "-emit-obj", "-fmodules", "-fimplicit-modules", "-fimplicit-module-maps", "-fmodules-cache-path=/tmp/cache", "-fmodules-validate-once-per-build-session", "-fbuild-session-timestamp=10", "-include", "/a.h", "-fsanitize-ignorelist=/ignore.txt"})
	if err != nil {
		t.Fatal(err)
	}
	inv.ClearImplicitModuleBuildOptions()
	inv.ResetNonModularOptions()
	want := []string{"-cc1", "-emit-obj", "-fmodules"}
	if diff := cmp.Diff(want, inv.CommandLine()); diff != "" {
		t.Errorf("CommandLine() diff -want +got:\n%s", diff)
	}
}
