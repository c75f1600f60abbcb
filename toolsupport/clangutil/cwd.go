// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clangutil

import "path/filepath"

// IsSafeToIgnoreCWD reports whether the result of inv can't depend on the
// current working directory, i.e. no path given in inv is relative.
func IsSafeToIgnoreCWD(inv *Invocation) bool {
	return len(RelativePaths(inv)) == 0
}

// RelativePaths returns path valued options of inv that are relative.
// Empty values are ignored.
func RelativePaths(inv *Invocation) []string {
	var rel []string
	check := func(p string) {
		if p != "" && !filepath.IsAbs(p) {
			rel = append(rel, p)
		}
	}
	checkAll := func(ps []string) {
		for _, p := range ps {
			check(p)
		}
	}

	hs := inv.HeaderSearchOpts()
	check(hs.Sysroot)
	for _, e := range hs.UserEntries {
		// entries relative to the sysroot are covered by the sysroot.
		if e.IgnoreSysRoot {
			check(e.Path)
		}
	}
	check(hs.ResourceDir)
	check(hs.ModuleCachePath)
	check(hs.ModuleUserBuildPath)
	for _, p := range hs.PrebuiltModuleFiles {
		check(p)
	}
	checkAll(hs.PrebuiltModulePaths)
	checkAll(hs.VFSOverlayFiles)

	pp := inv.PreprocessorOpts()
	checkAll(pp.MacroIncludes)
	checkAll(pp.Includes)
	check(pp.ImplicitPCHInclude)

	fe := inv.FrontendOpts()
	for _, in := range fe.Inputs {
		check(in.File)
	}
	check(fe.CodeCompletionAt.FileName)
	checkAll(fe.ModuleMapFiles)
	checkAll(fe.ModuleFiles)
	checkAll(fe.ModulesEmbedFiles)
	checkAll(fe.ASTMergeFiles)
	check(fe.OverrideRecordLayoutsFile)
	check(fe.StatsFile)

	check(inv.FileSystemOpts().WorkingDir)

	cg := inv.CodeGenOpts()
	check(cg.DebugCompilationDir)
	check(cg.CoverageCompilationDir)

	checkAll(inv.LangOpts().NoSanitizeFiles)

	check(cg.ProfileInstrumentUsePath)
	check(cg.SampleProfileFile)
	check(cg.ProfileRemappingFile)

	for _, d := range inv.DependencyOutputOpts().ExtraDeps {
		check(d.Path)
	}
	return rel
}
