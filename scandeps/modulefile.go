// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"io/fs"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"
)

// Version of the module file format. It is part of context hash, so
// modules are rebuilt when the format changes.
const (
	ModuleFormatVersionMajor = 34
	ModuleFormatVersionMinor = 1
)

// inferredModuleMap is the module map file name clang uses for modules
// inferred from framework or umbrella directories.
const inferredModuleMap = "__inferred_module.map"

// ModuleKind is a kind of module file.
type ModuleKind int

const (
	// ModuleKindImplicit is a module built implicitly by the frontend.
	ModuleKindImplicit ModuleKind = iota
	// ModuleKindExplicit is a module given by -fmodule-file=<path>.
	ModuleKindExplicit
	// ModuleKindPrebuilt is a module found in prebuilt module paths.
	ModuleKindPrebuilt
	// ModuleKindPCH is a precompiled header.
	ModuleKindPCH
	// ModuleKindMainFile is a main file loaded as a module.
	ModuleKindMainFile
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleKindImplicit:
		return "implicit"
	case ModuleKindExplicit:
		return "explicit"
	case ModuleKindPrebuilt:
		return "prebuilt"
	case ModuleKindPCH:
		return "pch"
	case ModuleKindMainFile:
		return "main"
	}
	return "unknown"
}

// InputFileInfo is an input file recorded in a module file.
type InputFileInfo struct {
	// UnresolvedImportedFilename is the path of the input, relative to
	// the base directory of the module file unless absolute.
	UnresolvedImportedFilename string
	// UnresolvedImportedFilenameAsRequested is the path as it was
	// requested, e.g. before following a VFS overlay.
	UnresolvedImportedFilenameAsRequested string

	// TopLevel is true if the input was used by the module itself, not
	// by one of its imports.
	TopLevel bool
	// ModuleMap is true if the input is a module map file.
	ModuleMap bool
	IsSystem  bool
}

// ModuleFile is a module file read by the frontend.
type ModuleFile struct {
	FileName      string
	Kind          ModuleKind
	BaseDirectory string
	Inputs        []InputFileInfo

	// Imports are file names of module files imported by the module file.
	Imports []string

	// SearchPathUsage has a bit for each header search entry used by
	// the module file.
	SearchPathUsage *bitset.BitSet
	// VFSUsage has a bit for each VFS overlay file used by the module
	// file.
	VFSUsage *bitset.BitSet
}

// ModuleReader looks up module files loaded by the frontend.
type ModuleReader interface {
	Lookup(astFile string) (*ModuleFile, bool)
}

// FileSystem is the file system the frontend used.
type FileSystem interface {
	// Getwd returns the current working directory.
	Getwd() (string, error)
	// Stat returns a FileInfo describing the named file.
	Stat(name string) (fs.FileInfo, error)
	// RealPath returns the canonical absolute path of name.
	RealPath(name string) (string, error)
}

// ResolveImportedPath resolves path recorded in a module file against
// baseDir.
func ResolveImportedPath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
