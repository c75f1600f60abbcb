// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// Consumer receives the result of a scan from EndOfMainFile.
type Consumer interface {
	HandleContextHash(hash string)
	HandleDependencyOutputOpts(opts *clangutil.DependencyOutputOptions)
	HandleProvidedAndRequiredStdCXXModules(provided *P1689ModuleInfo, required []P1689ModuleInfo)
	// HandleModuleDependency is called for each module, after modules
	// it depends on.
	HandleModuleDependency(md *ModuleDeps)
	HandleDirectModuleDependency(id ModuleID)
	HandleVisibleModule(name string)
	HandleFileDependency(path string)
	HandlePrebuiltModuleDependency(dep PrebuiltModuleDep)
}

// Report is a Consumer that keeps the result of a scan.
type Report struct {
	// MainFile is the main file of the translation unit.
	MainFile string
	// OutputFile is the output of the translation unit, if known.
	OutputFile string
	// CommandLine is the translation unit's command line to use
	// the modules explicitly.
	CommandLine []string

	ContextHash          string
	DependencyOutputOpts clangutil.DependencyOutputOptions

	Provided *P1689ModuleInfo
	Required []P1689ModuleInfo

	ModuleDeps      []*ModuleDeps
	DirectDeps      []ModuleID
	VisibleModules  []string
	FileDeps        []string
	PrebuiltModules []PrebuiltModuleDep
}

var _ Consumer = (*Report)(nil)

func (r *Report) HandleContextHash(hash string) { r.ContextHash = hash }

func (r *Report) HandleDependencyOutputOpts(opts *clangutil.DependencyOutputOptions) {
	r.DependencyOutputOpts = *opts
}

func (r *Report) HandleProvidedAndRequiredStdCXXModules(provided *P1689ModuleInfo, required []P1689ModuleInfo) {
	r.Provided = provided
	r.Required = required
}

func (r *Report) HandleModuleDependency(md *ModuleDeps) { r.ModuleDeps = append(r.ModuleDeps, md) }
func (r *Report) HandleDirectModuleDependency(id ModuleID) {
	r.DirectDeps = append(r.DirectDeps, id)
}
func (r *Report) HandleVisibleModule(name string) { r.VisibleModules = append(r.VisibleModules, name) }
func (r *Report) HandleFileDependency(path string) { r.FileDeps = append(r.FileDeps, path) }
func (r *Report) HandlePrebuiltModuleDependency(dep PrebuiltModuleDep) {
	r.PrebuiltModules = append(r.PrebuiltModules, dep)
}

// Module returns a module in the report by ID.
func (r *Report) Module(id ModuleID) (*ModuleDeps, bool) {
	for _, md := range r.ModuleDeps {
		if md.ID == id {
			return md, true
		}
	}
	return nil, false
}
