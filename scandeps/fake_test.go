// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bits-and-blooms/bitset"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

type fakeFileInfo struct {
	name string
}

func (fi fakeFileInfo) Name() string       { return fi.name }
func (fi fakeFileInfo) Size() int64        { return 0 }
func (fi fakeFileInfo) Mode() fs.FileMode  { return 0644 }
func (fi fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (fi fakeFileInfo) IsDir() bool        { return false }
func (fi fakeFileInfo) Sys() any           { return nil }

type fakeFS struct {
	cwd   string
	files map[string]bool

	// links maps symlink path to its target directory.
	links map[string]string
}

// resolve resolves symlinks in name.
func (fsys *fakeFS) resolve(name string) string {
	name = filepath.Clean(name)
	for range len(fsys.links) + 1 {
		changed := false
		for link, target := range fsys.links {
			if name == link || strings.HasPrefix(name, link+"/") {
				name = target + strings.TrimPrefix(name, link)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return name
}

func (fsys *fakeFS) Getwd() (string, error) {
	if fsys.cwd == "" {
		return "", errors.New("no cwd")
	}
	return fsys.cwd, nil
}

func (fsys *fakeFS) Stat(name string) (fs.FileInfo, error) {
	if !fsys.files[filepath.Clean(name)] && !fsys.files[fsys.resolve(name)] {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return fakeFileInfo{name: filepath.Base(name)}, nil
}

func (fsys *fakeFS) RealPath(name string) (string, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(fsys.cwd, name)
	}
	return fsys.resolve(name), nil
}

type fakeController struct {
	dir string
}

func (c fakeController) LookupModuleOutput(md *ModuleDeps, kind ModuleOutputKind) string {
	base := filepath.Join(c.dir, md.ID.ModuleName+"-"+md.ID.ContextHash)
	switch kind {
	case ModuleOutputModuleFile:
		return base + ".pcm"
	case ModuleOutputDiagnosticSerializationFile:
		return base + ".diag"
	case ModuleOutputDependencyFile:
		return base + ".d"
	}
	return ""
}

// fakeFrontend is a translation unit with a module graph and events.
type fakeFrontend struct {
	graph *Graph
	files map[string]*ModuleFile
	fs    *fakeFS
	inv   *clangutil.Invocation

	mainFile           string
	namedModule        string
	interfaceUnit      bool
	implementationUnit bool
	importingNamed     bool
	affecting          []ModuleHandle
	current            ModuleHandle

	events []func(context.Context, *Collector)
}

var tuArgs = []string{
	"-cc1", "-emit-obj",
	"-fmodules", "-fimplicit-modules", "-fimplicit-module-maps",
	"-fmodules-cache-path=/cache",
	"-isysroot", "/sdk",
	"-resource-dir", "/toolchain/lib/clang/20",
	"-I", "/sdk/usr/include",
	"-Wall",
	"-x", "c++",
	"/src/a.cc",
}

func newFakeFrontend(t *testing.T, args ...string) *fakeFrontend {
	t.Helper()
	if len(args) == 0 {
		args = tuArgs
	}
	inv, err := clangutil.Parse(args)
	if err != nil {
		t.Fatalf("clangutil.Parse(%q)=_, %v; want nil error", args, err)
	}
	return &fakeFrontend{
		graph: NewGraph(),
		files: make(map[string]*ModuleFile),
		fs: &fakeFS{
			cwd:   "/src",
			files: map[string]bool{"/src/a.cc": true},
		},
		inv:      inv,
		mainFile: "/src/a.cc",
		current:  NoModule,
	}
}

func (f *fakeFrontend) Graph() *Graph                      { return f.graph }
func (f *fakeFrontend) ModuleReader() ModuleReader         { return f }
func (f *fakeFrontend) FileSystem() FileSystem             { return f.fs }
func (f *fakeFrontend) MainFile() string                   { return f.mainFile }
func (f *fakeFrontend) IsInImportingCXXNamedModules() bool { return f.importingNamed }
func (f *fakeFrontend) NamedModule() string                { return f.namedModule }
func (f *fakeFrontend) IsInNamedInterfaceUnit() bool       { return f.interfaceUnit }
func (f *fakeFrontend) IsInImplementationUnit() bool       { return f.implementationUnit }
func (f *fakeFrontend) AffectingModules() []ModuleHandle   { return f.affecting }
func (f *fakeFrontend) CurrentModuleImplementation() ModuleHandle {
	return f.current
}
func (f *fakeFrontend) ModuleHash() string                { return InvocationHash(f.inv) }
func (f *fakeFrontend) Invocation() *clangutil.Invocation { return f.inv }

func (f *fakeFrontend) Lookup(astFile string) (*ModuleFile, bool) {
	mf, ok := f.files[astFile]
	return mf, ok
}

func (f *fakeFrontend) Replay(ctx context.Context, c *Collector) error {
	c.FileEntered(ctx, f.mainFile, false)
	for _, ev := range f.events {
		ev(ctx, c)
	}
	return c.EndOfMainFile(ctx)
}

// addModule adds top level module name defined in dir/module.modulemap,
// with a module file having inputs.
func (f *fakeFrontend) addModule(name, dir string, inputs ...string) ModuleHandle {
	mm := filepath.Join(dir, "module.modulemap")
	pcm := filepath.Join("/cache", name+".pcm")
	h := f.graph.Add(Module{
		Name:          name,
		Parent:        NoModule,
		ASTFile:       pcm,
		ModuleMapFile: mm,
	})
	hs := f.inv.HeaderSearchOpts()
	mf := &ModuleFile{
		FileName:      pcm,
		Kind:          ModuleKindImplicit,
		BaseDirectory: dir,
		Inputs: []InputFileInfo{
			{
				UnresolvedImportedFilename:            "module.modulemap",
				UnresolvedImportedFilenameAsRequested: "module.modulemap",
				TopLevel:                              true,
				ModuleMap:                             true,
			},
		},
		SearchPathUsage: bitset.New(uint(len(hs.UserEntries))),
		VFSUsage:        bitset.New(uint(len(hs.VFSOverlayFiles))),
	}
	for _, in := range inputs {
		mf.Inputs = append(mf.Inputs, InputFileInfo{
			UnresolvedImportedFilename:            in,
			UnresolvedImportedFilenameAsRequested: in,
			TopLevel:                              true,
		})
	}
	f.files[pcm] = mf
	f.fs.files[mm] = true
	return h
}

func (f *fakeFrontend) moduleFile(h ModuleHandle) *ModuleFile {
	return f.files[f.graph.Module(h).ASTFile]
}

// addImport makes m import dep, both in the graph and in module files.
func (f *fakeFrontend) addImport(m, dep ModuleHandle) {
	mod := f.graph.Module(m)
	mod.Imports = append(mod.Imports, dep)
	top := f.graph.Module(f.graph.TopLevel(m))
	mf := f.files[top.ASTFile]
	depFile := f.graph.Module(f.graph.TopLevel(dep)).ASTFile
	if mf != nil && depFile != "" && !slices.Contains(mf.Imports, depFile) {
		mf.Imports = append(mf.Imports, depFile)
	}
}

// include makes the translation unit include a header of m.
func (f *fakeFrontend) include(name string, m ModuleHandle) {
	f.events = append(f.events, func(ctx context.Context, c *Collector) {
		c.InclusionDirective(ctx, name, true, m, true)
	})
}

func (f *fakeFrontend) scan(t *testing.T, opts Options) (*Report, error) {
	t.Helper()
	s := New(opts, fakeController{dir: "/out/modules"})
	return s.Scan(context.Background(), f)
}

func mustScan(t *testing.T, f *fakeFrontend, opts Options) *Report {
	t.Helper()
	r, err := f.scan(t, opts)
	if err != nil {
		t.Fatalf("Scan=_, %v; want nil error", err)
	}
	return r
}

func moduleByName(t *testing.T, r *Report, name string) *ModuleDeps {
	t.Helper()
	for _, md := range r.ModuleDeps {
		if md.ID.ModuleName == name {
			return md
		}
	}
	t.Fatalf("module %s not found in %v", name, r.DirectDeps)
	return nil
}

// flagValues returns values of flag in args, given as separate args.
func flagValues(args []string, flag string) []string {
	var vals []string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			vals = append(vals, args[i+1])
		}
	}
	return vals
}
