// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/scandeps/stabledir"
	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// frame is a top level module being resolved.
type frame struct {
	module ModuleHandle
	md     *ModuleDeps
	mf     *ModuleFile

	// deps are top level modules imported or affecting the module or
	// its submodules, in the order to add them to md.ClangModuleDeps.
	deps []ModuleHandle
	next int

	// seen are top level modules already added to md.
	seen map[ModuleHandle]bool
}

// resolve resolves top level module m and modules it depends on.
// It returns false if m has no module file, i.e. it is not built as
// a module.
// Module dependencies are resolved with an explicit stack of frames.
func (c *Collector) resolve(ctx context.Context, m ModuleHandle) (ModuleID, bool, error) {
	if id, ok, done := c.resolved(m); done {
		return id, ok, nil
	}
	inProgress := make(map[ModuleHandle]bool)
	f, err := c.newFrame(ctx, m)
	if err != nil {
		return ModuleID{}, false, err
	}
	stack := []*frame{f}
	inProgress[m] = true
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next < len(f.deps) {
			dep := f.deps[f.next]
			if id, ok, done := c.resolved(dep); done {
				f.next++
				if ok {
					c.addModuleDep(f, dep, id)
				}
				continue
			}
			if inProgress[dep] {
				return ModuleID{}, false, fatalf(f.md.ID.ModuleName, "import cycle through %s", c.graph.FullName(dep))
			}
			df, err := c.newFrame(ctx, dep)
			if err != nil {
				return ModuleID{}, false, err
			}
			inProgress[dep] = true
			stack = append(stack, df)
			continue
		}
		err := c.finishFrame(ctx, f)
		if err != nil {
			return ModuleID{}, false, err
		}
		delete(inProgress, f.module)
		stack = stack[:len(stack)-1]
	}
	return c.modularDeps[m].ID, true, nil
}

// resolved returns the ID of m if m was resolved already, or m needs
// no resolution.
func (c *Collector) resolved(m ModuleHandle) (id ModuleID, ok, done bool) {
	if c.graph.Module(m).ASTFile == "" {
		// m is not built, e.g. -fmodule-name=m is used to compile the
		// translation unit. its headers are file deps already.
		return ModuleID{}, false, true
	}
	if md, ok := c.modularDeps[m]; ok {
		return md.ID, true, true
	}
	return ModuleID{}, false, false
}

// newFrame creates a new ModuleDeps of top level module m with inputs
// of its module file and prebuilt module dependencies.
func (c *Collector) newFrame(ctx context.Context, m ModuleHandle) (*frame, error) {
	mod := c.graph.Module(m)
	md := &ModuleDeps{
		ID: ModuleID{
			ModuleName: c.graph.FullName(m),
		},
		IsSystem: mod.IsSystem,
		// assume the module is shareable if there are stable dirs,
		// until an input out of stable dirs is found.
		IsInStableDirectories: len(c.stableDirs) > 0,
	}
	// modules with export_as link name are linked with the exported
	// module.
	if !mod.UseExportAsModuleLinkName {
		md.LinkLibraries = mod.LinkLibraries
	}
	if mod.ModuleMapFile != "" {
		md.ClangModuleMapFile = c.canonicalizeModuleMapPath(mod.ModuleMapFile)
	}
	mf, ok := c.reader.Lookup(mod.ASTFile)
	if !ok {
		return nil, fatalf(md.ID.ModuleName, "module file %s not loaded", mod.ASTFile)
	}
	if clog.V(1) {
		clog.Infof(ctx, "resolve %s from %s", md.ID.ModuleName, mf.FileName)
	}
	md.FileDepsBaseDir = mf.BaseDirectory
	for _, in := range mf.Inputs {
		// every input counts for stability, even __inferred_module.map.
		if md.IsInStableDirectories {
			full := ResolveImportedPath(in.UnresolvedImportedFilename, mf.BaseDirectory)
			md.IsInStableDirectories = stabledir.IsPathInStableDir(c.stableDirs, full)
		}
		// __inferred_module.map is an implementation detail of implicit
		// builds. the module file also has the module map that allowed
		// inferring the module.
		if strings.HasSuffix(in.UnresolvedImportedFilename, inferredModuleMap) {
			continue
		}
		md.FileDeps = append(md.FileDeps, in.UnresolvedImportedFilename)
	}

	f := &frame{
		module: m,
		md:     md,
		mf:     mf,
		seen:   make(map[ModuleHandle]bool),
	}
	err := c.addPrebuiltDeps(f)
	if err != nil {
		return nil, err
	}
	f.deps, err = c.moduleDepCandidates(m)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// addPrebuiltDeps adds prebuilt modules imported by m or its submodules.
func (c *Collector) addPrebuiltDeps(f *frame) error {
	var err error
	c.graph.Walk(f.module, func(sub ModuleHandle) {
		for _, imp := range c.graph.Module(sub).Imports {
			top := c.graph.TopLevel(imp)
			if top == f.module || err != nil {
				continue
			}
			var prebuilt bool
			prebuilt, err = c.isPrebuiltModule(top)
			if err != nil || !prebuilt || f.seen[top] {
				continue
			}
			f.seen[top] = true
			dep := c.prebuiltModuleDep(top)
			f.md.PrebuiltModuleDeps = append(f.md.PrebuiltModuleDeps, dep)
			if f.md.IsInStableDirectories {
				attrs, ok := c.opts.PrebuiltModulesAttrs[dep.PCMFile]
				f.md.IsInStableDirectories = ok && attrs != nil && attrs.IsInStableDir
			}
		}
	})
	return err
}

// moduleDepCandidates returns top level modules imported by m or its
// submodules, followed by modules affecting them, excluding prebuilt
// modules.
func (c *Collector) moduleDepCandidates(m ModuleHandle) ([]ModuleHandle, error) {
	var deps []ModuleHandle
	var err error
	add := func(dep ModuleHandle) {
		if dep == m || err != nil {
			return
		}
		var prebuilt bool
		prebuilt, err = c.isPrebuiltModule(dep)
		if err != nil || prebuilt {
			return
		}
		deps = append(deps, dep)
	}
	c.graph.Walk(m, func(sub ModuleHandle) {
		for _, imp := range c.graph.Module(sub).Imports {
			add(c.graph.TopLevel(imp))
		}
	})
	c.graph.Walk(m, func(sub ModuleHandle) {
		for _, a := range c.graph.Module(sub).AffectingModules {
			add(c.graph.TopLevel(a))
		}
	})
	return deps, err
}

func (c *Collector) addModuleDep(f *frame, dep ModuleHandle, id ModuleID) {
	if f.seen[dep] {
		return
	}
	f.seen[dep] = true
	f.md.ClangModuleDeps = append(f.md.ClangModuleDeps, id)
	if f.md.IsInStableDirectories {
		f.md.IsInStableDirectories = c.modularDeps[dep].IsInStableDirectories
	}
}

// finishFrame finishes md of f after all its dependencies are resolved:
// module map deps, command line, context hash and outputs.
func (c *Collector) finishFrame(ctx context.Context, f *frame) error {
	md, mf := f.md, f.mf
	for _, in := range mf.Inputs {
		if !in.TopLevel || !in.ModuleMap {
			continue
		}
		if strings.HasSuffix(in.UnresolvedImportedFilenameAsRequested, inferredModuleMap) {
			continue
		}
		md.ModuleMapFileDeps = append(md.ModuleMapFileDeps, ResolveImportedPath(in.UnresolvedImportedFilenameAsRequested, mf.BaseDirectory))
	}

	ignoreCWD := false
	var cwd string
	if wd, err := c.fs.Getwd(); err == nil {
		cwd = wd
	}
	inv, err := c.invocationForModule(md, func(inv *clangutil.Invocation) error {
		if c.opts.Optimize&(OptimizeHeaderSearch|OptimizeVFS) != 0 {
			err := optimizeHeaderSearchOpts(inv.MutHeaderSearchOpts(), c.reader, mf, c.opts.PrebuiltModulesAttrs, c.opts.Optimize)
			var ferr *FatalError
			if errors.As(err, &ferr) && ferr.Module == "" {
				ferr.Module = md.ID.ModuleName
			}
			if err != nil {
				return err
			}
		}
		if c.opts.Optimize&OptimizeSystemWarnings != 0 {
			optimizeDiagnosticOpts(inv.MutDiagnosticOpts(), inv.FrontendOpts().IsSystemModule)
		}
		ignoreCWD = c.opts.Optimize&OptimizeIgnoreCWD != 0 && clangutil.IsSafeToIgnoreCWD(inv)
		if ignoreCWD && cwd != "" {
			optimizeCWD(inv, cwd)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// header search paths of the command line must be in stable dirs too.
	if md.IsInStableDirectories {
		md.IsInStableDirectories = stabledir.AreOptionsInStableDir(c.stableDirs, inv.HeaderSearchOpts())
	}

	md.ID.ContextHash = ContextHash(md, inv, c.opts.EagerLoad, ignoreCWD, cwd)
	if _, dup := c.depsByID[md.ID]; dup {
		return fatalf(md.ID.ModuleName, "duplicate module %s", md.ID)
	}
	c.depsByID[md.ID] = md

	// outputs may depend on the context hash.
	c.addOutputPaths(inv, md)
	md.setInvocation(inv)

	c.modularDeps[f.module] = md
	c.modularOrder = append(c.modularOrder, f.module)
	clog.Infof(ctx, "module %s stable=%t deps=%d files=%d", md.ID, md.IsInStableDirectories, len(md.ClangModuleDeps), len(md.FileDeps))
	return nil
}

// canonicalizeModuleMapPath resolves the directory of the module map
// and removes dots.
// For a module map in Foo.framework/Modules, the framework directory is
// resolved instead, as the frontend expects Foo.framework/Modules, not
// Foo.framework/Versions/A/Modules.
func (c *Collector) canonicalizeModuleMapPath(p string) string {
	dir, base := filepath.Split(p)
	dir = filepath.Clean(dir)
	var sub string
	if filepath.Base(dir) == "Modules" && strings.HasSuffix(filepath.Dir(dir), ".framework") {
		dir, sub = filepath.Dir(dir), "Modules"
	}
	real, err := c.fs.RealPath(dir)
	if err != nil {
		return filepath.Clean(p)
	}
	return filepath.Join(real, sub, base)
}
