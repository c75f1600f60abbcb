// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// Optimizations are optional prunings of module command lines.
type Optimizations uint8

const (
	// OptimizeHeaderSearch removes header search paths the module
	// didn't use.
	OptimizeHeaderSearch Optimizations = 1 << iota
	// OptimizeVFS removes VFS overlay files the module didn't use.
	OptimizeVFS
	// OptimizeSystemWarnings removes warning options of system modules.
	OptimizeSystemWarnings
	// OptimizeIgnoreCWD removes the working directory from modules
	// whose command line has no relative paths.
	OptimizeIgnoreCWD

	OptimizeNone Optimizations = 0
	OptimizeAll                = OptimizeHeaderSearch | OptimizeVFS | OptimizeSystemWarnings | OptimizeIgnoreCWD
)

var optimizationNames = []struct {
	name string
	o    Optimizations
}{
	{"header-search", OptimizeHeaderSearch},
	{"vfs", OptimizeVFS},
	{"system-warnings", OptimizeSystemWarnings},
	{"ignore-cwd", OptimizeIgnoreCWD},
}

func (o Optimizations) String() string {
	switch o {
	case OptimizeNone:
		return "none"
	case OptimizeAll:
		return "all"
	}
	var names []string
	for _, n := range optimizationNames {
		if o&n.o != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseOptimizations parses optimization names, e.g.
// "header-search", "vfs", "system-warnings", "ignore-cwd", "all" or "none".
func ParseOptimizations(names []string) (Optimizations, error) {
	var o Optimizations
	for _, name := range names {
		switch name {
		case "all":
			o |= OptimizeAll
			continue
		case "none":
			continue
		}
		found := false
		for _, n := range optimizationNames {
			if n.name == name {
				o |= n.o
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown optimization %q", name)
		}
	}
	return o, nil
}

// usageLen returns the length of usage, treating nil as empty.
func usageLen(usage *bitset.BitSet) uint {
	if usage == nil {
		return 0
	}
	return usage.Len()
}

// optimizeHeaderSearchOpts keeps header search entries and VFS overlay
// files used by mf or the implicit modules it imports.
func optimizeHeaderSearchOpts(hs *clangutil.HeaderSearchOptions, reader ModuleReader, mf *ModuleFile, attrs PrebuiltModulesAttrs, opts Optimizations) error {
	if opts&OptimizeHeaderSearch != 0 {
		entries := hs.UserEntries
		usage := bitset.New(uint(len(entries)))
		visited := map[string]bool{}
		queue := []*ModuleFile{mf}
		visited[mf.FileName] = true
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			if usageLen(f.SearchPathUsage) != uint(len(entries)) {
				return fatalf("", "inconsistent search path options between modules: %s uses %d entries, want %d", f.FileName, usageLen(f.SearchPathUsage), len(entries))
			}
			if f.SearchPathUsage != nil {
				usage.InPlaceUnion(f.SearchPathUsage)
			}
			imports, err := importedModuleFiles(reader, f)
			if err != nil {
				return err
			}
			for _, imp := range imports {
				// explicitly built modules have their own search paths.
				if imp.Kind != ModuleKindImplicit || visited[imp.FileName] {
					continue
				}
				visited[imp.FileName] = true
				queue = append(queue, imp)
			}
		}
		hs.UserEntries = nil
		for i, ok := usage.NextSet(0); ok; i, ok = usage.NextSet(i + 1) {
			hs.UserEntries = append(hs.UserEntries, entries[i])
		}
	}
	if opts&OptimizeVFS != 0 {
		overlays := hs.VFSOverlayFiles
		usage := bitset.New(uint(len(overlays)))
		visited := map[string]bool{}
		queue := []*ModuleFile{mf}
		visited[mf.FileName] = true
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			if f.Kind != ModuleKindImplicit {
				// not implicitly built, so it may have different VFS
				// options. compare by name.
				a, ok := attrs[f.FileName]
				if !ok || a == nil {
					continue
				}
				for i, overlay := range overlays {
					if a.VFS[overlay] {
						usage.Set(uint(i))
					}
				}
				continue
			}
			if usageLen(f.VFSUsage) != uint(len(overlays)) {
				return fatalf("", "inconsistent -ivfsoverlay options between modules: %s uses %d overlays, want %d", f.FileName, usageLen(f.VFSUsage), len(overlays))
			}
			if f.VFSUsage != nil {
				usage.InPlaceUnion(f.VFSUsage)
			}
			imports, err := importedModuleFiles(reader, f)
			if err != nil {
				return err
			}
			for _, imp := range imports {
				if visited[imp.FileName] {
					continue
				}
				visited[imp.FileName] = true
				queue = append(queue, imp)
			}
		}
		hs.VFSOverlayFiles = nil
		for i, ok := usage.NextSet(0); ok; i, ok = usage.NextSet(i + 1) {
			hs.VFSOverlayFiles = append(hs.VFSOverlayFiles, overlays[i])
		}
	}
	return nil
}

func importedModuleFiles(reader ModuleReader, mf *ModuleFile) ([]*ModuleFile, error) {
	var imports []*ModuleFile
	for _, name := range mf.Imports {
		imp, ok := reader.Lookup(name)
		if !ok {
			return nil, fatalf("", "module file %s imports unknown module file %s", mf.FileName, name)
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

// optimizeDiagnosticOpts removes warning options of system modules
// unless -Wsystem-headers is given.
func optimizeDiagnosticOpts(diag *clangutil.DiagnosticOptions, isSystemModule bool) {
	if !isSystemModule {
		return
	}
	systemHeaders := false
	for _, w := range diag.Warnings {
		name, negative := strings.CutPrefix(w, "no-")
		if name == "system-headers" {
			systemHeaders = !negative
		}
	}
	if systemHeaders {
		return
	}
	diag.Warnings = nil
	diag.UndefPrefixes = nil
	diag.Remarks = nil
}

// optimizeCWD removes the working directory from inv.
// If debug info is generated, the compilation dir is set to the root of
// cwd, so cwd won't be embedded in the module.
func optimizeCWD(inv *clangutil.Invocation, cwd string) {
	inv.MutFileSystemOpts().WorkingDir = ""
	if inv.CodeGenOpts().DwarfVersion != 0 {
		inv.MutCodeGenOpts().DebugCompilationDir = rootPath(cwd)
	}
}

func rootPath(p string) string {
	vol := filepath.VolumeName(p)
	if len(p) > len(vol) && os.IsPathSeparator(p[len(vol)]) {
		return vol + string(filepath.Separator)
	}
	return vol
}
