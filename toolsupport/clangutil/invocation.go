// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clangutil provides a model of clang's frontend (-cc1)
// configuration used by the module dependency scanner.
//
// An Invocation is split into option groups. Groups are shared between
// clones and copied on first mutation, so deriving one configuration per
// discovered module from a common base is cheap.
package clangutil

import (
	"maps"
	"slices"
)

// ActionKind is the frontend program action.
type ActionKind int

const (
	ActionParseSyntaxOnly ActionKind = iota
	ActionEmitObj
	ActionGenerateModule
	ActionGenerateModuleInterface
	ActionGeneratePCH
	ActionPreprocess
)

var actionFlags = map[ActionKind]string{
	ActionParseSyntaxOnly:         "-fsyntax-only",
	ActionEmitObj:                 "-emit-obj",
	ActionGenerateModule:          "-emit-module",
	ActionGenerateModuleInterface: "-emit-module-interface",
	ActionGeneratePCH:             "-emit-pch",
	ActionPreprocess:              "-E",
}

func (a ActionKind) String() string {
	if s, ok := actionFlags[a]; ok {
		return s
	}
	return "unknown"
}

// Language is an input language as spelled by -x.
type Language string

const (
	LangUnknown   Language = ""
	LangC         Language = "c"
	LangCXX       Language = "c++"
	LangObjC      Language = "objective-c"
	LangObjCXX    Language = "objective-c++"
	LangAsm       Language = "assembler-with-cpp"
	LangLLVMIR    Language = "ir"
	LangCUDA      Language = "cuda"
	LangOpenCL    Language = "cl"
	LangHIP       Language = "hip"
	LangRenderScr Language = "renderscript"
)

// NeedsModules reports whether inputs of the language can import modules.
func (l Language) NeedsModules() bool {
	switch l {
	case LangUnknown, LangAsm, LangLLVMIR:
		return false
	}
	return true
}

// InputFormat is the format of a frontend input.
type InputFormat int

const (
	FormatSource InputFormat = iota
	FormatModuleMap
	FormatPrecompiled
)

// InputKind is a language and format of an input.
type InputKind struct {
	Lang   Language
	Format InputFormat
}

// Input is a frontend input file.
type Input struct {
	File string
	Kind InputKind
}

// SourceLocation is a file:line:column location given on the command line.
type SourceLocation struct {
	FileName string
	Line     int
	Column   int
}

// FrontendOptions are options of the frontend action.
type FrontendOptions struct {
	ProgramAction ActionKind
	Inputs        []Input
	OutputFile    string
	DashX         InputKind

	ModuleMapFiles            []string
	ModuleFiles               []string
	ModulesEmbedFiles         []string
	ASTMergeFiles             []string
	OverrideRecordLayoutsFile string
	StatsFile                 string
	CodeCompletionAt          SourceLocation
	LLVMArgs                  []string
	IsSystemModule            bool
}

func (o *FrontendOptions) clone() *FrontendOptions {
	c := *o
	c.Inputs = slices.Clone(o.Inputs)
	c.ModuleMapFiles = slices.Clone(o.ModuleMapFiles)
	c.ModuleFiles = slices.Clone(o.ModuleFiles)
	c.ModulesEmbedFiles = slices.Clone(o.ModulesEmbedFiles)
	c.ASTMergeFiles = slices.Clone(o.ASTMergeFiles)
	c.LLVMArgs = slices.Clone(o.LLVMArgs)
	return &c
}

// IncludeGroup is a header search group.
type IncludeGroup int

const (
	GroupAngled IncludeGroup = iota
	GroupQuoted
	GroupSystem
	GroupAfter
)

// Entry is a header search path entry.
type Entry struct {
	Path        string
	Group       IncludeGroup
	IsFramework bool
	// IgnoreSysRoot is true when Path is not relative to the sysroot.
	IgnoreSysRoot bool
}

// SystemHeaderPrefix marks headers under Prefix as system or non-system.
type SystemHeaderPrefix struct {
	Prefix         string
	IsSystemHeader bool
}

// HeaderSearchOptions are options of header and module search.
type HeaderSearchOptions struct {
	Sysroot     string
	ResourceDir string

	ModuleCachePath     string
	ModuleUserBuildPath string

	UserEntries          []Entry
	SystemHeaderPrefixes []SystemHeaderPrefix

	// PrebuiltModuleFiles maps module name to its artifact path.
	PrebuiltModuleFiles map[string]string
	PrebuiltModulePaths []string
	VFSOverlayFiles     []string

	// ModulesIgnoreMacros are macro names that do not affect modules.
	ModulesIgnoreMacros map[string]bool

	ImplicitModuleMaps                 bool
	ModulesValidateOncePerBuildSession bool
	BuildSessionTimestamp              int64
	KeepNonAffectingModuleMaps         bool
}

func (o *HeaderSearchOptions) clone() *HeaderSearchOptions {
	c := *o
	c.UserEntries = slices.Clone(o.UserEntries)
	c.SystemHeaderPrefixes = slices.Clone(o.SystemHeaderPrefixes)
	c.PrebuiltModuleFiles = maps.Clone(o.PrebuiltModuleFiles)
	c.PrebuiltModulePaths = slices.Clone(o.PrebuiltModulePaths)
	c.VFSOverlayFiles = slices.Clone(o.VFSOverlayFiles)
	c.ModulesIgnoreMacros = maps.Clone(o.ModulesIgnoreMacros)
	return &c
}

// LangOptions are language options.
type LangOptions struct {
	LangStd         string
	Modules         bool
	ImplicitModules bool
	ModulesCodegen  bool
	ModuleName      string
	Sanitize        []string
	NoSanitizeFiles []string
}

func (o *LangOptions) clone() *LangOptions {
	c := *o
	c.Sanitize = slices.Clone(o.Sanitize)
	c.NoSanitizeFiles = slices.Clone(o.NoSanitizeFiles)
	return &c
}

// Macro is a -D or -U on the command line.
type Macro struct {
	// Def is "NAME" or "NAME=VALUE".
	Def     string
	IsUndef bool
}

// PreprocessorOptions are preprocessor options.
type PreprocessorOptions struct {
	Macros             []Macro
	Includes           []string
	MacroIncludes      []string
	ImplicitPCHInclude string
}

func (o *PreprocessorOptions) clone() *PreprocessorOptions {
	c := *o
	c.Macros = slices.Clone(o.Macros)
	c.Includes = slices.Clone(o.Includes)
	c.MacroIncludes = slices.Clone(o.MacroIncludes)
	return &c
}

// DiagnosticOptions are diagnostic options.
type DiagnosticOptions struct {
	Warnings                    []string
	Remarks                     []string
	UndefPrefixes               []string
	DiagnosticSerializationFile string
	SystemHeaderWarningsModules []string
}

func (o *DiagnosticOptions) clone() *DiagnosticOptions {
	c := *o
	c.Warnings = slices.Clone(o.Warnings)
	c.Remarks = slices.Clone(o.Remarks)
	c.UndefPrefixes = slices.Clone(o.UndefPrefixes)
	c.SystemHeaderWarningsModules = slices.Clone(o.SystemHeaderWarningsModules)
	return &c
}

// CodeGenOptions are code generation options.
type CodeGenOptions struct {
	DwarfVersion             int
	DebugCompilationDir      string
	CoverageCompilationDir   string
	CoverageDataFile         string
	CoverageNotesFile        string
	ProfileInstrumentUsePath string
	SampleProfileFile        string
	ProfileRemappingFile     string
	MainFileName             string
	DwarfDebugFlags          string
}

func (o *CodeGenOptions) clone() *CodeGenOptions {
	c := *o
	return &c
}

// FileSystemOptions are file system options.
type FileSystemOptions struct {
	WorkingDir string
}

func (o *FileSystemOptions) clone() *FileSystemOptions {
	c := *o
	return &c
}

// ExtraDep is an extra dependency file added to the dependency output.
type ExtraDep struct {
	Path string
}

// DependencyOutputOptions are options of dependency file output.
type DependencyOutputOptions struct {
	OutputFile           string
	Targets              []string
	ExtraDeps            []ExtraDep
	IncludeSystemHeaders bool
}

func (o *DependencyOutputOptions) clone() *DependencyOutputOptions {
	c := *o
	c.Targets = slices.Clone(o.Targets)
	c.ExtraDeps = slices.Clone(o.ExtraDeps)
	return &c
}

type groupMask uint8

const (
	groupLang groupMask = 1 << iota
	groupFrontend
	groupHeaderSearch
	groupPreprocessor
	groupDiagnostic
	groupCodeGen
	groupFileSystem
	groupDependencyOutput

	allGroups = groupLang | groupFrontend | groupHeaderSearch | groupPreprocessor | groupDiagnostic | groupCodeGen | groupFileSystem | groupDependencyOutput
)

// Invocation is a compiler configuration.
//
// Accessors without the Mut prefix return groups that may be shared with
// clones; they must be treated as read-only. Mut accessors return a group
// owned by this Invocation.
// An Invocation is not safe for concurrent use.
type Invocation struct {
	lang      *LangOptions
	frontend  *FrontendOptions
	hs        *HeaderSearchOptions
	pp        *PreprocessorOptions
	diag      *DiagnosticOptions
	codegen   *CodeGenOptions
	fs        *FileSystemOptions
	depOutput *DependencyOutputOptions

	shared groupMask
}

// New creates an empty Invocation.
func New() *Invocation {
	return &Invocation{
		lang:      &LangOptions{},
		frontend:  &FrontendOptions{},
		hs:        &HeaderSearchOptions{},
		pp:        &PreprocessorOptions{},
		diag:      &DiagnosticOptions{},
		codegen:   &CodeGenOptions{},
		fs:        &FileSystemOptions{},
		depOutput: &DependencyOutputOptions{},
	}
}

// Clone returns a copy of inv sharing all option groups with it.
func (inv *Invocation) Clone() *Invocation {
	inv.shared = allGroups
	c := *inv
	return &c
}

// DeepClone returns a copy of inv that shares nothing with it.
func (inv *Invocation) DeepClone() *Invocation {
	return &Invocation{
		lang:      inv.lang.clone(),
		frontend:  inv.frontend.clone(),
		hs:        inv.hs.clone(),
		pp:        inv.pp.clone(),
		diag:      inv.diag.clone(),
		codegen:   inv.codegen.clone(),
		fs:        inv.fs.clone(),
		depOutput: inv.depOutput.clone(),
	}
}

func (inv *Invocation) own(g groupMask) bool {
	if inv.shared&g == 0 {
		return false
	}
	inv.shared &^= g
	return true
}

func (inv *Invocation) LangOpts() *LangOptions                 { return inv.lang }
func (inv *Invocation) FrontendOpts() *FrontendOptions         { return inv.frontend }
func (inv *Invocation) HeaderSearchOpts() *HeaderSearchOptions { return inv.hs }
func (inv *Invocation) PreprocessorOpts() *PreprocessorOptions { return inv.pp }
func (inv *Invocation) DiagnosticOpts() *DiagnosticOptions     { return inv.diag }
func (inv *Invocation) CodeGenOpts() *CodeGenOptions           { return inv.codegen }
func (inv *Invocation) FileSystemOpts() *FileSystemOptions     { return inv.fs }
func (inv *Invocation) DependencyOutputOpts() *DependencyOutputOptions {
	return inv.depOutput
}

func (inv *Invocation) MutLangOpts() *LangOptions {
	if inv.own(groupLang) {
		inv.lang = inv.lang.clone()
	}
	return inv.lang
}

func (inv *Invocation) MutFrontendOpts() *FrontendOptions {
	if inv.own(groupFrontend) {
		inv.frontend = inv.frontend.clone()
	}
	return inv.frontend
}

func (inv *Invocation) MutHeaderSearchOpts() *HeaderSearchOptions {
	if inv.own(groupHeaderSearch) {
		inv.hs = inv.hs.clone()
	}
	return inv.hs
}

func (inv *Invocation) MutPreprocessorOpts() *PreprocessorOptions {
	if inv.own(groupPreprocessor) {
		inv.pp = inv.pp.clone()
	}
	return inv.pp
}

func (inv *Invocation) MutDiagnosticOpts() *DiagnosticOptions {
	if inv.own(groupDiagnostic) {
		inv.diag = inv.diag.clone()
	}
	return inv.diag
}

func (inv *Invocation) MutCodeGenOpts() *CodeGenOptions {
	if inv.own(groupCodeGen) {
		inv.codegen = inv.codegen.clone()
	}
	return inv.codegen
}

func (inv *Invocation) MutFileSystemOpts() *FileSystemOptions {
	if inv.own(groupFileSystem) {
		inv.fs = inv.fs.clone()
	}
	return inv.fs
}

func (inv *Invocation) MutDependencyOutputOpts() *DependencyOutputOptions {
	if inv.own(groupDependencyOutput) {
		inv.depOutput = inv.depOutput.clone()
	}
	return inv.depOutput
}
