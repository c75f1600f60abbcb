// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// ModuleID identifies a module variant.
// Modules with the same name but built with different command lines
// have different context hashes.
type ModuleID struct {
	ModuleName  string `json:"module-name"`
	ContextHash string `json:"context-hash"`
}

func (id ModuleID) String() string {
	return id.ModuleName + ":" + id.ContextHash
}

// PrebuiltModuleDep is a dependency on a module given as a prebuilt
// module file. It is not scanned.
type PrebuiltModuleDep struct {
	ModuleName    string `json:"module-name"`
	PCMFile       string `json:"pcm-file"`
	ModuleMapFile string `json:"modulemap-file,omitempty"`
}

type buildState int

const (
	buildUnset buildState = iota
	buildInvocation
	buildArguments
)

// buildInfo is a command line to build a module, kept as Invocation
// until BuildArguments is called.
type buildInfo struct {
	state buildState
	inv   *clangutil.Invocation
	args  []string
}

// ModuleDeps is a module discovered by a scan.
type ModuleDeps struct {
	ID ModuleID

	IsSystem bool

	// IsInStableDirectories is true if all inputs of the module and its
	// dependencies are in stable directories.
	IsInStableDirectories bool

	// ClangModuleMapFile is the module map file defining the module.
	ClangModuleMapFile string

	// ClangModuleDeps are modules the module depends on.
	ClangModuleDeps []ModuleID

	// PrebuiltModuleDeps are prebuilt modules the module depends on.
	PrebuiltModuleDeps []PrebuiltModuleDep

	// ModuleMapFileDeps are module map files the module used.
	ModuleMapFileDeps []string

	// FileDeps are input files of the module, relative to
	// FileDepsBaseDir unless absolute.
	FileDeps        []string
	FileDepsBaseDir string

	// LinkLibraries is nil if the module uses export_as link name.
	LinkLibraries []LinkLibrary

	buildInfo buildInfo
}

// ForEachFileDep calls fn with each file dependency resolved against
// FileDepsBaseDir.
func (md *ModuleDeps) ForEachFileDep(fn func(string)) {
	for _, f := range md.FileDeps {
		fn(ResolveImportedPath(f, md.FileDepsBaseDir))
	}
}

func (md *ModuleDeps) setInvocation(inv *clangutil.Invocation) {
	md.buildInfo = buildInfo{state: buildInvocation, inv: inv}
}

// BuildArguments returns the -cc1 command line to build the module.
// The command line is flattened from the Invocation on the first call.
// It is not safe to call concurrently.
func (md *ModuleDeps) BuildArguments() []string {
	switch md.buildInfo.state {
	case buildUnset:
		panic("scandeps: BuildArguments on unfinished module " + md.ID.ModuleName)
	case buildInvocation:
		md.buildInfo.args = md.buildInfo.inv.CommandLine()
		md.buildInfo.inv = nil
		md.buildInfo.state = buildArguments
	}
	return md.buildInfo.args
}
