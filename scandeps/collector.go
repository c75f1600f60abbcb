// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/scandeps/stabledir"
	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// Frontend is the compiler frontend preprocessing a translation unit.
type Frontend interface {
	// Graph returns modules known to the frontend.
	Graph() *Graph
	// ModuleReader returns module files loaded by the frontend.
	ModuleReader() ModuleReader
	// FileSystem returns the file system used by the frontend.
	FileSystem() FileSystem

	// MainFile returns the main file of the translation unit.
	MainFile() string

	// IsInImportingCXXNamedModules reports whether the current import
	// is an import of C++20 named modules.
	IsInImportingCXXNamedModules() bool
	// NamedModule returns the name of C++20 named module the
	// translation unit belongs to, or empty.
	NamedModule() string
	IsInNamedInterfaceUnit() bool
	IsInImplementationUnit() bool

	// AffectingModules returns modules that affected the translation
	// unit without being imported.
	AffectingModules() []ModuleHandle
	// CurrentModuleImplementation returns the module the translation
	// unit implements by -fmodule-name, or NoModule.
	CurrentModuleImplementation() ModuleHandle

	// ModuleHash returns the context hash of the translation unit.
	ModuleHash() string
}

// Format is an output format of a scan.
type Format int

const (
	// FormatFull is a full module graph with command lines.
	FormatFull Format = iota
	// FormatMake is a make style deps rule.
	FormatMake
	// FormatP1689 is P1689 C++ named module dependency format.
	FormatP1689
)

func (f Format) String() string {
	switch f {
	case FormatFull:
		return "full"
	case FormatMake:
		return "make"
	case FormatP1689:
		return "p1689"
	}
	return "unknown"
}

// ParseFormat parses a format name, "full", "make" or "p1689".
func ParseFormat(name string) (Format, error) {
	for _, f := range []Format{FormatFull, FormatMake, FormatP1689} {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown format %q", name)
}

// Options are options of a scan.
type Options struct {
	// StableDirs are directories whose contents don't vary between
	// build trees.
	StableDirs []string

	// PrebuiltModulesAttrs are attributes of prebuilt modules.
	PrebuiltModulesAttrs PrebuiltModulesAttrs

	Optimize Optimizations

	// EagerLoad passes module dependencies as -fmodule-file=<path>
	// instead of -fmodule-file=<name>=<path>.
	EagerLoad bool

	Format Format
}

// P1689ModuleType is a type of module in P1689 format.
type P1689ModuleType int

const (
	// NamedCXXModule is a C++20 named module.
	NamedCXXModule P1689ModuleType = iota
)

// P1689ModuleInfo is a C++20 named module provided or required by a
// translation unit.
type P1689ModuleInfo struct {
	ModuleName string
	// SourcePath is the source of the provided module.
	SourcePath string
	Type       P1689ModuleType

	IsStdCXXModuleInterface bool
}

// Collector collects module dependencies of a translation unit from
// preprocessing events.
type Collector struct {
	fe         Frontend
	graph      *Graph
	reader     ModuleReader
	fs         FileSystem
	consumer   Consumer
	controller OutputController
	opts       Options

	// stableDirs are opts.StableDirs, or nil if the translation unit
	// is not configured with sysroot and resource dir in them.
	stableDirs []string

	// inv is the translation unit's command line.
	inv *clangutil.Invocation
	// common is the base command line of module builds.
	common *clangutil.Invocation

	mainFile string
	fileDeps []string

	directModular    []ModuleHandle
	directModularSet map[ModuleHandle]bool
	directImports    []ModuleHandle
	directImportSet  map[ModuleHandle]bool
	directPrebuilt   []PrebuiltModuleDep
	directPrebuiltOf map[ModuleHandle]bool
	visibleModules   map[string]bool

	provided *P1689ModuleInfo
	required []P1689ModuleInfo

	// modularDeps are resolved modules by top level module handle,
	// and modularOrder is the order they were resolved.
	modularDeps  map[ModuleHandle]*ModuleDeps
	modularOrder []ModuleHandle
	depsByID     map[ModuleID]*ModuleDeps

	// err is an error found in event handlers, reported by
	// EndOfMainFile.
	err error
}

// NewCollector creates a collector for the translation unit compiled
// with inv.
func NewCollector(fe Frontend, inv *clangutil.Invocation, consumer Consumer, controller OutputController, opts Options) *Collector {
	hs := inv.HeaderSearchOpts()
	if opts.PrebuiltModulesAttrs == nil {
		opts.PrebuiltModulesAttrs = PrebuiltModulesAttrs{}
	}
	return &Collector{
		fe:               fe,
		graph:            fe.Graph(),
		reader:           fe.ModuleReader(),
		fs:               fe.FileSystem(),
		consumer:         consumer,
		controller:       controller,
		opts:             opts,
		stableDirs:       stabledir.Filter(opts.StableDirs, hs.Sysroot, hs.ResourceDir),
		inv:              inv,
		common:           makeCommonInvocationForModuleBuild(inv),
		directModularSet: make(map[ModuleHandle]bool),
		directImportSet:  make(map[ModuleHandle]bool),
		directPrebuiltOf: make(map[ModuleHandle]bool),
		visibleModules:   make(map[string]bool),
		modularDeps:      make(map[ModuleHandle]*ModuleDeps),
		depsByID:         make(map[ModuleID]*ModuleDeps),
	}
}

// MainFile returns the main file of the translation unit, known after
// EndOfMainFile.
func (c *Collector) MainFile() string {
	return c.mainFile
}

// StableDirs returns stable dirs used for the scan.
func (c *Collector) StableDirs() []string {
	return c.stableDirs
}

// FileEntered is called when the frontend enters a file.
// builtin is true for the predefines buffer or line markers.
func (c *Collector) FileEntered(ctx context.Context, path string, builtin bool) {
	if builtin {
		return
	}
	c.addFileDep(removeLeadingDotSlash(path))
}

// InclusionDirective is called for #include or #import.
// found is false if the header wasn't found. suggested is the module
// the header belongs to, and moduleImported is true if the include was
// turned into a module import.
func (c *Collector) InclusionDirective(ctx context.Context, fileName string, found bool, suggested ModuleHandle, moduleImported bool) {
	if !found && !moduleImported {
		// no FileEntered would be called for it.
		clog.Infof(ctx, "unresolved include %q", fileName)
		c.addFileDep(fileName)
	}
	c.handleImport(ctx, suggested)
}

// ModuleImport is called for a module import.
// path is the module path as written in the import, e.g. ["std", "vector"].
func (c *Collector) ModuleImport(ctx context.Context, path []string, imported ModuleHandle) {
	if c.fe.IsInImportingCXXNamedModules() {
		if len(path) == 0 {
			return
		}
		c.required = append(c.required, P1689ModuleInfo{
			ModuleName: path[0],
			Type:       NamedCXXModule,
		})
		return
	}
	c.handleImport(ctx, imported)
}

func (c *Collector) handleImport(ctx context.Context, imported ModuleHandle) {
	if imported == NoModule {
		return
	}
	top := c.graph.TopLevel(imported)
	prebuilt, err := c.isPrebuiltModule(top)
	if err != nil {
		c.setErr(err)
		return
	}
	if prebuilt {
		if !c.directPrebuiltOf[top] {
			c.directPrebuiltOf[top] = true
			c.directPrebuilt = append(c.directPrebuilt, c.prebuiltModuleDep(top))
		}
		return
	}
	if clog.V(1) {
		clog.Infof(ctx, "import %s", c.graph.FullName(imported))
	}
	c.addDirectModular(top)
	if !c.directImportSet[imported] {
		c.directImportSet[imported] = true
		c.directImports = append(c.directImports, imported)
	}
}

func (c *Collector) addDirectModular(top ModuleHandle) {
	if c.directModularSet[top] {
		return
	}
	c.directModularSet[top] = true
	c.directModular = append(c.directModular, top)
}

func (c *Collector) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

// EndOfMainFile is called at the end of the translation unit.
// It resolves all modules and reports them to the consumer.
// If it returns an error, nothing is reported.
func (c *Collector) EndOfMainFile(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	c.mainFile = c.fe.MainFile()

	if name := c.fe.NamedModule(); name != "" {
		info := P1689ModuleInfo{
			ModuleName:              name,
			SourcePath:              c.mainFile,
			Type:                    NamedCXXModule,
			IsStdCXXModuleInterface: c.fe.IsInNamedInterfaceUnit(),
		}
		// implementation unit implicitly imports its primary module
		// interface.
		if c.fe.IsInImplementationUnit() {
			info.SourcePath = ""
			c.required = append(c.required, info)
		} else {
			c.provided = &info
		}
	}

	if pch := c.inv.PreprocessorOpts().ImplicitPCHInclude; pch != "" {
		c.addFileDep(pch)
	}

	for _, m := range c.fe.AffectingModules() {
		top := c.graph.TopLevel(m)
		prebuilt, err := c.isPrebuiltModule(top)
		if err != nil {
			return err
		}
		if !prebuilt {
			c.addDirectModular(top)
		}
	}

	c.addVisibleModules()

	for _, m := range c.directModular {
		_, _, err := c.resolve(ctx, m)
		if err != nil {
			clog.Warningf(ctx, "failed to resolve %s: %v", c.graph.FullName(m), err)
			return err
		}
	}
	c.report()
	return nil
}

func (c *Collector) report() {
	c.consumer.HandleContextHash(c.fe.ModuleHash())
	c.consumer.HandleDependencyOutputOpts(c.inv.DependencyOutputOpts())
	c.consumer.HandleProvidedAndRequiredStdCXXModules(c.provided, c.required)
	for _, h := range c.modularOrder {
		c.consumer.HandleModuleDependency(c.modularDeps[h])
	}
	for _, h := range c.directModular {
		// only modules resolved successfully.
		if md, ok := c.modularDeps[h]; ok {
			c.consumer.HandleDirectModuleDependency(md.ID)
		}
	}
	visible := make([]string, 0, len(c.visibleModules))
	for name := range c.visibleModules {
		visible = append(visible, name)
	}
	slices.Sort(visible)
	for _, name := range visible {
		c.consumer.HandleVisibleModule(name)
	}
	for _, f := range c.fileDeps {
		c.consumer.HandleFileDependency(f)
	}
	for _, pb := range c.directPrebuilt {
		c.consumer.HandlePrebuiltModuleDependency(pb)
	}
}

// addVisibleModules computes modules visible from direct imports by
// following exports.
func (c *Collector) addVisibleModules() {
	imported := make(map[ModuleHandle]bool)
	for _, m := range c.directImports {
		if imported[m] {
			continue
		}
		c.visibleModules[c.graph.TopLevelName(m)] = true
		queue := slices.Clone(c.graph.Module(m).Exports)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if imported[cur] {
				continue
			}
			imported[cur] = true
			c.visibleModules[c.graph.TopLevelName(cur)] = true
			queue = append(queue, c.graph.Module(cur).Exports...)
		}
	}
}

// isPrebuiltModule reports whether the top level module of m is given
// by -fmodule-file=<name>=<path>.
func (c *Collector) isPrebuiltModule(m ModuleHandle) (bool, error) {
	top := c.graph.TopLevel(m)
	name := c.graph.Module(top).Name
	pcm, ok := c.inv.HeaderSearchOpts().PrebuiltModuleFiles[name]
	if !ok {
		return false, nil
	}
	if astFile := c.graph.Module(top).ASTFile; astFile != pcm {
		return false, fatalf(name, "prebuilt module loaded from %s, want %s", astFile, pcm)
	}
	return true, nil
}

func (c *Collector) prebuiltModuleDep(top ModuleHandle) PrebuiltModuleDep {
	m := c.graph.Module(top)
	return PrebuiltModuleDep{
		ModuleName:    m.Name,
		PCMFile:       m.ASTFile,
		ModuleMapFile: m.ModuleMapFile,
	}
}

// addFileDep adds a file dependency of the translation unit.
// Paths are made absolute, except for make and P1689 formats which
// keep paths as observed.
func (c *Collector) addFileDep(p string) {
	switch c.opts.Format {
	case FormatMake, FormatP1689:
		c.fileDeps = append(c.fileDeps, p)
		return
	}
	c.fileDeps = append(c.fileDeps, filepath.FromSlash(c.makeAbsolute(p)))
}

// makeAbsolute prepends cwd to relative p.
// Unlike filepath.Join, ".." and "." in p are kept as the compiler
// reports them.
func (c *Collector) makeAbsolute(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	cwd, err := c.fs.Getwd()
	if err != nil {
		return p
	}
	return strings.TrimSuffix(cwd, string(filepath.Separator)) + string(filepath.Separator) + p
}

func removeLeadingDotSlash(p string) string {
	for strings.HasPrefix(p, "./") {
		p = strings.TrimLeft(p[2:], "/")
	}
	return p
}
