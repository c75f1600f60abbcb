// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clangutil

// ResetBenignCodeGenOptions clears codegen options that can't affect the
// result of action.
func ResetBenignCodeGenOptions(action ActionKind, lang *LangOptions, cg *CodeGenOptions) {
	if action == ActionGenerateModule {
		cg.MainFileName = ""
		cg.DwarfDebugFlags = ""
	}
	if action == ActionGeneratePCH || (action == ActionGenerateModule && !lang.ModulesCodegen) {
		cg.DebugCompilationDir = ""
		cg.CoverageCompilationDir = ""
		cg.CoverageDataFile = ""
		cg.CoverageNotesFile = ""
		cg.ProfileInstrumentUsePath = ""
		cg.SampleProfileFile = ""
		cg.ProfileRemappingFile = ""
	}
}

// ResetNonModularOptions clears options that are specific to a
// translation unit and don't affect a module built from it.
func (inv *Invocation) ResetNonModularOptions() {
	lang := inv.MutLangOpts()
	lang.NoSanitizeFiles = nil

	pp := inv.MutPreprocessorOpts()
	pp.Includes = nil
	pp.MacroIncludes = nil
	pp.ImplicitPCHInclude = ""
}

// ClearImplicitModuleBuildOptions clears options that only make sense when
// the compiler builds modules on demand.
func (inv *Invocation) ClearImplicitModuleBuildOptions() {
	inv.MutLangOpts().ImplicitModules = false
	hs := inv.MutHeaderSearchOpts()
	hs.ImplicitModuleMaps = false
	hs.ModuleCachePath = ""
	hs.ModulesValidateOncePerBuildSession = false
	hs.BuildSessionTimestamp = 0
}
