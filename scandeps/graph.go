// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"slices"
	"strings"
)

// ModuleHandle identifies a module in a Graph.
type ModuleHandle int

// NoModule is a handle of no module.
const NoModule ModuleHandle = -1

// LinkLibrary is a library a module needs to be linked with.
type LinkLibrary struct {
	Library     string `json:"library"`
	IsFramework bool   `json:"is-framework,omitempty"`
}

// Module is a clang module known to the frontend.
type Module struct {
	// Name is the name of the module, not including its parents.
	Name   string
	Parent ModuleHandle

	// Submodules are set by Graph.Add.
	Submodules []ModuleHandle

	IsSystem bool

	// ASTFile is the module file the module was loaded from.
	// Empty if the module was not built, e.g. the module is the one
	// being compiled with -fmodule-name.
	ASTFile string

	// ModuleMapFile is the module map file defining the module, as
	// requested by the frontend.
	ModuleMapFile string

	Imports          []ModuleHandle
	Exports          []ModuleHandle
	AffectingModules []ModuleHandle

	LinkLibraries             []LinkLibrary
	UseExportAsModuleLinkName bool
}

// Graph holds modules known to the frontend.
// Modules are referred by ModuleHandle, which is an index in the graph.
type Graph struct {
	modules []Module

	// byName maps full name to the first module added with the name.
	byName map[string]ModuleHandle
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		byName: make(map[string]ModuleHandle),
	}
}

// Add adds m to the graph and returns its handle.
// m.Parent must be added before m.
func (g *Graph) Add(m Module) ModuleHandle {
	h := ModuleHandle(len(g.modules))
	m.Submodules = nil
	g.modules = append(g.modules, m)
	fullName := m.Name
	if m.Parent != NoModule {
		p := &g.modules[m.Parent]
		p.Submodules = append(p.Submodules, h)
		fullName = g.FullName(m.Parent) + "." + m.Name
	}
	if g.byName == nil {
		g.byName = make(map[string]ModuleHandle)
	}
	if _, ok := g.byName[fullName]; !ok {
		g.byName[fullName] = h
	}
	return h
}

// Len returns number of modules in the graph.
func (g *Graph) Len() int {
	return len(g.modules)
}

// Valid reports whether h is a module in the graph.
func (g *Graph) Valid(h ModuleHandle) bool {
	return h >= 0 && int(h) < len(g.modules)
}

// Module returns the module of h.
func (g *Graph) Module(h ModuleHandle) *Module {
	return &g.modules[h]
}

// TopLevel returns the top level module of h.
func (g *Graph) TopLevel(h ModuleHandle) ModuleHandle {
	for g.modules[h].Parent != NoModule {
		h = g.modules[h].Parent
	}
	return h
}

// FullName returns the full name of h, e.g. "std.vector".
func (g *Graph) FullName(h ModuleHandle) string {
	var names []string
	for ; h != NoModule; h = g.modules[h].Parent {
		names = append(names, g.modules[h].Name)
	}
	slices.Reverse(names)
	return strings.Join(names, ".")
}

// TopLevelName returns the name of the top level module of h.
func (g *Graph) TopLevelName(h ModuleHandle) string {
	return g.modules[g.TopLevel(h)].Name
}

// SortedSubmodules returns submodules of h sorted by name.
// Submodule order depends on the order of header includes for inferred
// submodules, so sorted order is used to get the same result for all
// translation units.
func (g *Graph) SortedSubmodules(h ModuleHandle) []ModuleHandle {
	subs := slices.Clone(g.modules[h].Submodules)
	slices.SortStableFunc(subs, func(a, b ModuleHandle) int {
		return strings.Compare(g.modules[a].Name, g.modules[b].Name)
	})
	return subs
}

// Walk calls fn for h and all its submodules in pre-order, visiting
// submodules in name order.
func (g *Graph) Walk(h ModuleHandle, fn func(ModuleHandle)) {
	stack := []ModuleHandle{h}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(m)
		subs := g.SortedSubmodules(m)
		for i := len(subs) - 1; i >= 0; i-- {
			stack = append(stack, subs[i])
		}
	}
}

// Lookup finds a module by its full name.
// If more than one module has the name, the first added one is returned.
func (g *Graph) Lookup(fullName string) (ModuleHandle, bool) {
	h, ok := g.byName[fullName]
	if !ok {
		return NoModule, false
	}
	return h, true
}
