// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"slices"
	"strings"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// makeCommonInvocationForModuleBuild returns the base command line of
// module builds derived from the translation unit's inv.
// Options specific to the translation unit are removed, so modules
// discovered from different translation units get the same command line.
func makeCommonInvocationForModuleBuild(inv *clangutil.Invocation) *clangutil.Invocation {
	inv = inv.DeepClone()
	inv.ResetNonModularOptions()
	inv.ClearImplicitModuleBuildOptions()

	hs := inv.MutHeaderSearchOpts()
	// non-affecting module maps are not passed to module builds.
	hs.KeepNonAffectingModuleMaps = false

	fe := inv.MutFrontendOpts()
	fe.Inputs = nil
	fe.OutputFile = ""
	// LLVM options don't affect the AST.
	fe.LLVMArgs = nil

	clangutil.ResetBenignCodeGenOptions(clangutil.ActionGenerateModule, inv.LangOpts(), inv.MutCodeGenOpts())

	// outputs that change the behavior are kept as "-", so they are
	// hashed. Real paths are set by addOutputPaths.
	diag := inv.MutDiagnosticOpts()
	if diag.DiagnosticSerializationFile != "" {
		diag.DiagnosticSerializationFile = "-"
	}
	dep := inv.MutDependencyOutputOpts()
	if dep.OutputFile != "" {
		dep.OutputFile = "-"
	}
	dep.Targets = nil

	fe.ProgramAction = clangutil.ActionGenerateModule
	inv.MutLangOpts().ModuleName = ""

	if len(hs.ModulesIgnoreMacros) > 0 {
		pp := inv.MutPreprocessorOpts()
		pp.Macros = slices.DeleteFunc(pp.Macros, func(m clangutil.Macro) bool {
			name, _, _ := strings.Cut(m.Def, "=")
			return hs.ModulesIgnoreMacros[name]
		})
		hs.ModulesIgnoreMacros = nil
	}
	return inv
}

// invocationForModule derives the command line to build md from the
// common invocation, without outputs.
// optimize is called on the derived command line before it is returned.
func (c *Collector) invocationForModule(md *ModuleDeps, optimize func(*clangutil.Invocation) error) (*clangutil.Invocation, error) {
	inv := c.common.Clone()

	inv.MutLangOpts().ModuleName = md.ID.ModuleName
	fe := inv.MutFrontendOpts()
	fe.IsSystemModule = md.IsSystem

	fe.Inputs = append(fe.Inputs, clangutil.Input{
		File: md.ClangModuleMapFile,
		Kind: clangutil.InputKind{
			Lang:   fe.DashX.Lang,
			Format: clangutil.FormatModuleMap,
		},
	})
	current, err := c.moduleMapKey(md.ID.ModuleName, md.ClangModuleMapFile)
	if err != nil {
		return nil, err
	}

	// module maps given on the command line are added back if they
	// were used.
	fe.ModuleMapFiles = nil
	depModuleMaps, err := c.collectModuleMapFiles(md.ID.ModuleName, md.ClangModuleDeps)
	if err != nil {
		return nil, err
	}
	for _, mm := range md.ModuleMapFileDeps {
		key, err := c.moduleMapKey(md.ID.ModuleName, mm)
		if err != nil {
			return nil, err
		}
		// eagerly loaded modules have module maps in their module files.
		if c.opts.EagerLoad && depModuleMaps[key] {
			continue
		}
		// the module's own module map is passed as input already,
		// unless it also describes a dependency.
		if key == current && !depModuleMaps[key] {
			continue
		}
		fe.ModuleMapFiles = append(fe.ModuleMapFiles, mm)
	}

	for _, pb := range md.PrebuiltModuleDeps {
		fe.ModuleFiles = append(fe.ModuleFiles, pb.PCMFile)
	}
	err = c.addModuleFiles(inv, md.ID.ModuleName, md.ClangModuleDeps)
	if err != nil {
		return nil, err
	}

	if diag := inv.DiagnosticOpts(); len(diag.SystemHeaderWarningsModules) > 0 {
		d := inv.MutDiagnosticOpts()
		if slices.Contains(d.SystemHeaderWarningsModules, md.ID.ModuleName) {
			d.Warnings = append(d.Warnings, "system-headers")
		}
		d.SystemHeaderWarningsModules = nil
	}

	if optimize != nil {
		err = optimize(inv)
		if err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// moduleMapKey returns a key to compare module map files.
// Module maps reached through symlinks have the same key as the file
// they point to.
// The module map must exist, as the frontend found it.
func (c *Collector) moduleMapKey(module, fname string) (string, error) {
	if _, err := c.fs.Stat(fname); err != nil {
		return "", fatalf(module, "module map file %s not found: %v", fname, err)
	}
	real, err := c.fs.RealPath(fname)
	if err != nil {
		return "", fatalf(module, "module map file %s: %v", fname, err)
	}
	return real, nil
}

// collectModuleMapFiles returns a set of module map files of deps.
func (c *Collector) collectModuleMapFiles(module string, deps []ModuleID) (map[string]bool, error) {
	m := make(map[string]bool)
	for _, id := range deps {
		md, ok := c.depsByID[id]
		if !ok {
			return nil, fatalf(module, "unknown dependency %s", id)
		}
		key, err := c.moduleMapKey(module, md.ClangModuleMapFile)
		if err != nil {
			return nil, err
		}
		m[key] = true
	}
	return m, nil
}

// addModuleMapFiles adds module map files of deps to inv.
// Eagerly loaded modules don't need them.
func (c *Collector) addModuleMapFiles(inv *clangutil.Invocation, module string, deps []ModuleID) error {
	if c.opts.EagerLoad {
		return nil
	}
	for _, id := range deps {
		md, ok := c.depsByID[id]
		if !ok {
			return fatalf(module, "unknown dependency %s", id)
		}
		fe := inv.MutFrontendOpts()
		fe.ModuleMapFiles = append(fe.ModuleMapFiles, md.ClangModuleMapFile)
	}
	return nil
}

// addModuleFiles adds module files of deps to inv, as -fmodule-file=<path>
// if eagerly loaded, or -fmodule-file=<name>=<path> otherwise.
func (c *Collector) addModuleFiles(inv *clangutil.Invocation, module string, deps []ModuleID) error {
	for _, id := range deps {
		md, ok := c.depsByID[id]
		if !ok {
			return fatalf(module, "unknown dependency %s", id)
		}
		pcm := c.controller.LookupModuleOutput(md, ModuleOutputModuleFile)
		if c.opts.EagerLoad {
			fe := inv.MutFrontendOpts()
			fe.ModuleFiles = append(fe.ModuleFiles, pcm)
			continue
		}
		hs := inv.MutHeaderSearchOpts()
		if hs.PrebuiltModuleFiles == nil {
			hs.PrebuiltModuleFiles = make(map[string]string)
		}
		if _, ok := hs.PrebuiltModuleFiles[id.ModuleName]; !ok {
			hs.PrebuiltModuleFiles[id.ModuleName] = pcm
		}
	}
	return nil
}

// ApplyDiscoveredDependencies updates the translation unit's inv to use
// modules discovered by the scan, instead of building them implicitly.
// It must be called after EndOfMainFile.
func (c *Collector) ApplyDiscoveredDependencies(inv *clangutil.Invocation) error {
	inv.ClearImplicitModuleBuildOptions()
	clangutil.ResetBenignCodeGenOptions(inv.FrontendOpts().ProgramAction, inv.LangOpts(), inv.MutCodeGenOpts())

	if !slices.ContainsFunc(inv.FrontendOpts().Inputs, func(in clangutil.Input) bool {
		return in.Kind.Lang.NeedsModules()
	}) {
		return nil
	}
	if h := c.fe.CurrentModuleImplementation(); h != NoModule {
		if mm := c.graph.Module(h).ModuleMapFile; mm != "" {
			fe := inv.MutFrontendOpts()
			fe.ModuleMapFiles = append(fe.ModuleMapFiles, mm)
		}
	}
	var direct []ModuleID
	for _, h := range c.modularOrder {
		if c.directModularSet[h] {
			direct = append(direct, c.modularDeps[h].ID)
		}
	}
	err := c.addModuleMapFiles(inv, "", direct)
	if err != nil {
		return err
	}
	err = c.addModuleFiles(inv, "", direct)
	if err != nil {
		return err
	}
	for _, pb := range c.directPrebuilt {
		fe := inv.MutFrontendOpts()
		fe.ModuleFiles = append(fe.ModuleFiles, pb.PCMFile)
	}
	return nil
}
