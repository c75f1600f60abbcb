// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package pptrace provides recorded preprocessing traces of translation
// units, which can be replayed into a scandeps.Collector.
package pptrace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/osfs"
	"go.chromium.org/infra/build/modscan/scandeps"
)

// Trace is a recorded preprocessing of a translation unit.
type Trace struct {
	MainFile   string `json:"main-file"`
	WorkingDir string `json:"working-dir"`
	// CommandLine is the -cc1 command line of the translation unit.
	CommandLine []string `json:"command-line"`
	// ContextHash is the frontend's hash of the translation unit.
	// If empty, it is computed from the command line.
	ContextHash string `json:"context-hash,omitempty"`

	NamedModule        string `json:"named-module,omitempty"`
	InterfaceUnit      bool   `json:"interface-unit,omitempty"`
	ImplementationUnit bool   `json:"implementation-unit,omitempty"`

	// CurrentModule is the module given by -fmodule-name, if any.
	CurrentModule string `json:"current-module,omitempty"`
	// AffectingModules are full names of modules that affected the
	// translation unit without being imported.
	AffectingModules []string `json:"affecting-modules,omitempty"`

	// Modules are modules known to the frontend. Parents must precede
	// their submodules.
	Modules     []Module     `json:"modules,omitempty"`
	ModuleFiles []ModuleFile `json:"module-files,omitempty"`

	// Files are files that existed during preprocessing.
	Files []string `json:"files,omitempty"`
	// RealDirs maps directories to their canonical paths, for
	// directories under symlinks.
	RealDirs map[string]string `json:"real-dirs,omitempty"`

	Events []Event `json:"events"`
}

// Module is a module in a trace.
type Module struct {
	// Name is the full name of the module, e.g. "std.vector".
	Name          string `json:"name"`
	IsSystem      bool   `json:"is-system,omitempty"`
	ASTFile       string `json:"ast-file,omitempty"`
	ModuleMapFile string `json:"modulemap-file,omitempty"`

	Imports          []string `json:"imports,omitempty"`
	Exports          []string `json:"exports,omitempty"`
	AffectingModules []string `json:"affecting-modules,omitempty"`

	LinkLibraries             []scandeps.LinkLibrary `json:"link-libraries,omitempty"`
	UseExportAsModuleLinkName bool                   `json:"use-export-as-module-link-name,omitempty"`
}

// ModuleFile is a module file in a trace.
type ModuleFile struct {
	FileName string `json:"file-name"`
	// Kind is "implicit", "explicit", "prebuilt", "pch" or "main".
	Kind          string   `json:"kind"`
	BaseDirectory string   `json:"base-directory,omitempty"`
	Inputs        []Input  `json:"inputs,omitempty"`
	Imports       []string `json:"imports,omitempty"`

	// SearchPathUsage and VFSUsage are strings of '0' and '1', a
	// character for each entry.
	SearchPathUsage string `json:"search-path-usage,omitempty"`
	VFSUsage        string `json:"vfs-usage,omitempty"`
}

// Input is an input file of a module file.
type Input struct {
	Filename string `json:"filename"`
	// AsRequested is the file name as requested, if different.
	AsRequested string `json:"as-requested,omitempty"`
	TopLevel    bool   `json:"top-level,omitempty"`
	ModuleMap   bool   `json:"module-map,omitempty"`
	IsSystem    bool   `json:"is-system,omitempty"`
}

// EventKind is a kind of preprocessing event.
type EventKind string

const (
	EventFileEntered EventKind = "file-entered"
	EventInclude     EventKind = "include"
	EventImport      EventKind = "import"
)

// Event is a preprocessing event.
type Event struct {
	Kind EventKind `json:"kind"`

	// Path is the entered file, or the file name of the include.
	Path    string `json:"path,omitempty"`
	Builtin bool   `json:"builtin,omitempty"`
	Found   bool   `json:"found,omitempty"`

	// Module is the full name of the imported or suggested module.
	Module         string `json:"module,omitempty"`
	ModuleImported bool   `json:"module-imported,omitempty"`

	// ImportPath is the module path of an import.
	ImportPath []string `json:"import-path,omitempty"`
	// Named is true for imports of C++20 named modules.
	Named bool `json:"named,omitempty"`
}

// zstdMagic is the magic number of zstd frames.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Parse parses a trace, optionally zstd compressed.
func Parse(b []byte) (*Trace, error) {
	if bytes.HasPrefix(b, zstdMagic) {
		d, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer d.Close()
		b, err = d.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress trace: %w", err)
		}
	}
	t := &Trace{}
	err := json.Unmarshal(b, t)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	if t.MainFile == "" {
		return nil, fmt.Errorf("no main-file in trace")
	}
	if len(t.CommandLine) == 0 {
		return nil, fmt.Errorf("no command-line in trace of %s", t.MainFile)
	}
	return t, nil
}

// Load loads a trace from fname.
func Load(ctx context.Context, fsys *osfs.OSFS, fname string) (*Trace, error) {
	b, err := fsys.ReadFile(ctx, fname)
	if err != nil {
		return nil, err
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	clog.Infof(ctx, "loaded trace %s: main=%s modules=%d events=%d", fname, t.MainFile, len(t.Modules), len(t.Events))
	return t, nil
}

// Save saves t in fname, compressed with zstd if compress is true.
func Save(ctx context.Context, fsys *osfs.OSFS, fname string, t *Trace, compress bool) error {
	b, err := json.MarshalIndent(t, "", " ")
	if err != nil {
		return err
	}
	if compress {
		e, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		b = e.EncodeAll(b, nil)
		err = e.Close()
		if err != nil {
			return err
		}
	}
	return fsys.WriteFile(ctx, fname, b, 0644)
}
