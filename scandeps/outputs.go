// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"strings"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
	"go.chromium.org/infra/build/modscan/toolsupport/makeutil"
)

// ModuleOutputKind is a kind of output of a module build.
type ModuleOutputKind int

const (
	// ModuleOutputModuleFile is the module file (.pcm).
	ModuleOutputModuleFile ModuleOutputKind = iota
	// ModuleOutputDiagnosticSerializationFile is the serialized
	// diagnostics file.
	ModuleOutputDiagnosticSerializationFile
	// ModuleOutputDependencyFile is the make style deps file.
	ModuleOutputDependencyFile
	// ModuleOutputDependencyTargets are targets in the deps file,
	// separated by NUL.
	ModuleOutputDependencyTargets
)

func (k ModuleOutputKind) String() string {
	switch k {
	case ModuleOutputModuleFile:
		return "module-file"
	case ModuleOutputDiagnosticSerializationFile:
		return "diagnostic-serialization-file"
	case ModuleOutputDependencyFile:
		return "dependency-file"
	case ModuleOutputDependencyTargets:
		return "dependency-targets"
	}
	return "unknown"
}

// OutputController decides output paths of module builds.
type OutputController interface {
	// LookupModuleOutput returns the output of kind for md.
	// md has its context hash.
	LookupModuleOutput(md *ModuleDeps, kind ModuleOutputKind) string
}

// addOutputPaths sets output paths of md in inv.
// Diagnostics and deps outputs are set only if the translation unit
// has them.
func (c *Collector) addOutputPaths(inv *clangutil.Invocation, md *ModuleDeps) {
	fe := inv.MutFrontendOpts()
	fe.OutputFile = c.controller.LookupModuleOutput(md, ModuleOutputModuleFile)
	if inv.DiagnosticOpts().DiagnosticSerializationFile != "" {
		inv.MutDiagnosticOpts().DiagnosticSerializationFile = c.controller.LookupModuleOutput(md, ModuleOutputDiagnosticSerializationFile)
	}
	if inv.DependencyOutputOpts().OutputFile == "" {
		return
	}
	dep := inv.MutDependencyOutputOpts()
	dep.OutputFile = c.controller.LookupModuleOutput(md, ModuleOutputDependencyFile)
	dep.Targets = splitTargets(c.controller.LookupModuleOutput(md, ModuleOutputDependencyTargets))
	if dep.OutputFile != "" && len(dep.Targets) == 0 {
		// use the module file, as the compiler driver does for -o.
		dep.Targets = []string{makeutil.QuoteTarget(fe.OutputFile)}
	}
}

func splitTargets(s string) []string {
	var targets []string
	for _, t := range strings.Split(s, "\x00") {
		if t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}
