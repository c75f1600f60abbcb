// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package pptrace

import (
	"context"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/scandeps"
	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// Source is a translation unit replayed from a trace.
type Source struct {
	trace *Trace
	inv   *clangutil.Invocation
	graph *scandeps.Graph
	files map[string]*scandeps.ModuleFile
	fs    scandeps.FileSystem

	affecting []scandeps.ModuleHandle
	current   scandeps.ModuleHandle
	events    []event

	importingNamed bool
}

var _ scandeps.Source = (*Source)(nil)

// event is an Event with its module resolved.
type event struct {
	Event
	module scandeps.ModuleHandle
}

// NewSource creates a source of t.
// If fsys is nil, the file system recorded in the trace is used.
func NewSource(t *Trace, fsys scandeps.FileSystem) (*Source, error) {
	inv, err := clangutil.Parse(t.CommandLine)
	if err != nil {
		return nil, fmt.Errorf("bad command line of %s: %w", t.MainFile, err)
	}
	if fsys == nil {
		fsys = newRecordedFS(t)
	}
	s := &Source{
		trace:   t,
		inv:     inv,
		graph:   scandeps.NewGraph(),
		files:   make(map[string]*scandeps.ModuleFile),
		fs:      fsys,
		current: scandeps.NoModule,
	}
	err = s.buildGraph()
	if err != nil {
		return nil, err
	}
	for _, mf := range t.ModuleFiles {
		f, err := moduleFile(mf)
		if err != nil {
			return nil, err
		}
		s.files[f.FileName] = f
	}
	s.affecting, err = s.lookupAll(t.AffectingModules)
	if err != nil {
		return nil, err
	}
	if t.CurrentModule != "" {
		s.current, err = s.lookup(t.CurrentModule)
		if err != nil {
			return nil, err
		}
	}
	for _, ev := range t.Events {
		e := event{Event: ev, module: scandeps.NoModule}
		switch ev.Kind {
		case EventFileEntered:
		case EventInclude, EventImport:
			if ev.Module != "" {
				e.module, err = s.lookup(ev.Module)
				if err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("unknown event kind %q in trace of %s", ev.Kind, t.MainFile)
		}
		s.events = append(s.events, e)
	}
	return s, nil
}

// buildGraph adds modules in the trace to the graph, and then sets
// their relations.
func (s *Source) buildGraph() error {
	for _, m := range s.trace.Modules {
		parent := scandeps.NoModule
		name := m.Name
		if i := strings.LastIndexByte(m.Name, '.'); i >= 0 {
			var err error
			parent, err = s.lookup(m.Name[:i])
			if err != nil {
				return fmt.Errorf("parent of %s: %w", m.Name, err)
			}
			name = m.Name[i+1:]
		}
		if _, ok := s.graph.Lookup(m.Name); ok {
			return fmt.Errorf("duplicate module %s in trace of %s", m.Name, s.trace.MainFile)
		}
		s.graph.Add(scandeps.Module{
			Name:                      name,
			Parent:                    parent,
			IsSystem:                  m.IsSystem,
			ASTFile:                   m.ASTFile,
			ModuleMapFile:             m.ModuleMapFile,
			LinkLibraries:             m.LinkLibraries,
			UseExportAsModuleLinkName: m.UseExportAsModuleLinkName,
		})
	}
	for i, m := range s.trace.Modules {
		mod := s.graph.Module(scandeps.ModuleHandle(i))
		var err error
		mod.Imports, err = s.lookupAll(m.Imports)
		if err != nil {
			return fmt.Errorf("imports of %s: %w", m.Name, err)
		}
		mod.Exports, err = s.lookupAll(m.Exports)
		if err != nil {
			return fmt.Errorf("exports of %s: %w", m.Name, err)
		}
		mod.AffectingModules, err = s.lookupAll(m.AffectingModules)
		if err != nil {
			return fmt.Errorf("affecting modules of %s: %w", m.Name, err)
		}
	}
	return nil
}

func (s *Source) lookup(name string) (scandeps.ModuleHandle, error) {
	h, ok := s.graph.Lookup(name)
	if !ok {
		return scandeps.NoModule, fmt.Errorf("unknown module %q in trace of %s", name, s.trace.MainFile)
	}
	return h, nil
}

func (s *Source) lookupAll(names []string) ([]scandeps.ModuleHandle, error) {
	var hs []scandeps.ModuleHandle
	for _, name := range names {
		h, err := s.lookup(name)
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	return hs, nil
}

var moduleKinds = map[string]scandeps.ModuleKind{
	"implicit": scandeps.ModuleKindImplicit,
	"explicit": scandeps.ModuleKindExplicit,
	"prebuilt": scandeps.ModuleKindPrebuilt,
	"pch":      scandeps.ModuleKindPCH,
	"main":     scandeps.ModuleKindMainFile,
}

func moduleFile(mf ModuleFile) (*scandeps.ModuleFile, error) {
	kind, ok := moduleKinds[mf.Kind]
	if !ok {
		return nil, fmt.Errorf("module file %s: unknown kind %q", mf.FileName, mf.Kind)
	}
	f := &scandeps.ModuleFile{
		FileName:      mf.FileName,
		Kind:          kind,
		BaseDirectory: mf.BaseDirectory,
		Imports:       mf.Imports,
	}
	for _, in := range mf.Inputs {
		asRequested := in.AsRequested
		if asRequested == "" {
			asRequested = in.Filename
		}
		f.Inputs = append(f.Inputs, scandeps.InputFileInfo{
			UnresolvedImportedFilename:            in.Filename,
			UnresolvedImportedFilenameAsRequested: asRequested,
			TopLevel:                              in.TopLevel,
			ModuleMap:                             in.ModuleMap,
			IsSystem:                              in.IsSystem,
		})
	}
	var err error
	f.SearchPathUsage, err = parseUsage(mf.SearchPathUsage)
	if err != nil {
		return nil, fmt.Errorf("module file %s: search-path-usage: %w", mf.FileName, err)
	}
	f.VFSUsage, err = parseUsage(mf.VFSUsage)
	if err != nil {
		return nil, fmt.Errorf("module file %s: vfs-usage: %w", mf.FileName, err)
	}
	return f, nil
}

// parseUsage parses a string of '0' and '1' as a bitset of its length.
func parseUsage(s string) (*bitset.BitSet, error) {
	b := bitset.New(uint(len(s)))
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			b.Set(uint(i))
		default:
			return nil, fmt.Errorf("bad usage %q at %d", c, i)
		}
	}
	return b, nil
}

func (s *Source) Graph() *scandeps.Graph              { return s.graph }
func (s *Source) ModuleReader() scandeps.ModuleReader { return s }
func (s *Source) FileSystem() scandeps.FileSystem     { return s.fs }
func (s *Source) MainFile() string                    { return s.trace.MainFile }
func (s *Source) IsInImportingCXXNamedModules() bool  { return s.importingNamed }
func (s *Source) NamedModule() string                 { return s.trace.NamedModule }
func (s *Source) IsInNamedInterfaceUnit() bool        { return s.trace.InterfaceUnit }
func (s *Source) IsInImplementationUnit() bool        { return s.trace.ImplementationUnit }
func (s *Source) Invocation() *clangutil.Invocation   { return s.inv }

func (s *Source) AffectingModules() []scandeps.ModuleHandle {
	return s.affecting
}

func (s *Source) CurrentModuleImplementation() scandeps.ModuleHandle {
	return s.current
}

// ModuleHash returns the recorded context hash, or a hash of the
// command line.
func (s *Source) ModuleHash() string {
	if s.trace.ContextHash != "" {
		return s.trace.ContextHash
	}
	return scandeps.InvocationHash(s.inv)
}

// Lookup returns the module file loaded from astFile.
func (s *Source) Lookup(astFile string) (*scandeps.ModuleFile, bool) {
	f, ok := s.files[astFile]
	return f, ok
}

// Replay replays the recorded events to c.
func (s *Source) Replay(ctx context.Context, c *scandeps.Collector) error {
	c.FileEntered(ctx, s.trace.MainFile, false)
	for _, ev := range s.events {
		if clog.V(1) {
			clog.Infof(ctx, "event %s %s %s", ev.Kind, ev.Path, ev.Module)
		}
		switch ev.Kind {
		case EventFileEntered:
			c.FileEntered(ctx, ev.Path, ev.Builtin)
		case EventInclude:
			c.InclusionDirective(ctx, ev.Path, ev.Found, ev.module, ev.ModuleImported)
		case EventImport:
			s.importingNamed = ev.Named
			c.ModuleImport(ctx, ev.ImportPath, ev.module)
			s.importingNamed = false
		}
	}
	return c.EndOfMainFile(ctx)
}
