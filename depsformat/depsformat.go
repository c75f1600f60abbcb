// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package depsformat writes scan reports in output formats.
package depsformat

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"go.chromium.org/infra/build/modscan/scandeps"
	"go.chromium.org/infra/build/modscan/toolsupport/makeutil"
)

// Write writes reports to w in format.
func Write(w io.Writer, format scandeps.Format, reports []*scandeps.Report) error {
	switch format {
	case scandeps.FormatFull:
		return writeJSON(w, Full(reports))
	case scandeps.FormatMake:
		for _, r := range reports {
			err := WriteMake(w, r)
			if err != nil {
				return err
			}
		}
		return nil
	case scandeps.FormatP1689:
		return writeJSON(w, P1689(reports))
	}
	return fmt.Errorf("unknown format %v", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FullOutput is the full dependency graph of translation units.
type FullOutput struct {
	Modules          []FullModule          `json:"modules"`
	TranslationUnits []FullTranslationUnit `json:"translation-units"`
}

// FullModule is a module in FullOutput.
type FullModule struct {
	Name                  string                       `json:"name"`
	ContextHash           string                       `json:"context-hash"`
	ClangModuleMapFile    string                       `json:"clang-modulemap-file"`
	ClangModuleDeps       []scandeps.ModuleID          `json:"clang-module-deps"`
	PrebuiltModuleDeps    []scandeps.PrebuiltModuleDep `json:"prebuilt-module-deps,omitempty"`
	CommandLine           []string                     `json:"command-line"`
	FileDeps              []string                     `json:"file-deps"`
	LinkLibraries         []scandeps.LinkLibrary       `json:"link-libraries,omitempty"`
	IsSystem              bool                         `json:"is-system,omitempty"`
	IsInStableDirectories bool                         `json:"is-in-stable-directories,omitempty"`
}

// FullTranslationUnit is a translation unit in FullOutput.
type FullTranslationUnit struct {
	InputFile       string                       `json:"input-file"`
	ContextHash     string                       `json:"clang-context-hash"`
	ModuleDeps      []scandeps.ModuleID          `json:"clang-module-deps"`
	PrebuiltModules []scandeps.PrebuiltModuleDep `json:"prebuilt-modules,omitempty"`
	VisibleModules  []string                     `json:"visible-modules,omitempty"`
	CommandLine     []string                     `json:"command-line"`
	FileDeps        []string                     `json:"file-deps"`
}

// Full returns the full dependency graph of reports.
// Modules found by more than one report are listed once, sorted by
// name and context hash.
func Full(reports []*scandeps.Report) FullOutput {
	out := FullOutput{
		Modules:          []FullModule{},
		TranslationUnits: []FullTranslationUnit{},
	}
	seen := make(map[scandeps.ModuleID]bool)
	for _, r := range reports {
		for _, md := range r.ModuleDeps {
			if seen[md.ID] {
				continue
			}
			seen[md.ID] = true
			m := FullModule{
				Name:                  md.ID.ModuleName,
				ContextHash:           md.ID.ContextHash,
				ClangModuleMapFile:    md.ClangModuleMapFile,
				ClangModuleDeps:       nonNil(md.ClangModuleDeps),
				PrebuiltModuleDeps:    md.PrebuiltModuleDeps,
				CommandLine:           md.BuildArguments(),
				FileDeps:              []string{},
				LinkLibraries:         md.LinkLibraries,
				IsSystem:              md.IsSystem,
				IsInStableDirectories: md.IsInStableDirectories,
			}
			md.ForEachFileDep(func(f string) {
				m.FileDeps = append(m.FileDeps, f)
			})
			slices.Sort(m.FileDeps)
			out.Modules = append(out.Modules, m)
		}
		out.TranslationUnits = append(out.TranslationUnits, FullTranslationUnit{
			InputFile:       r.MainFile,
			ContextHash:     r.ContextHash,
			ModuleDeps:      nonNil(r.DirectDeps),
			PrebuiltModules: r.PrebuiltModules,
			VisibleModules:  r.VisibleModules,
			CommandLine:     nonNil(r.CommandLine),
			FileDeps:        nonNil(r.FileDeps),
		})
	}
	slices.SortFunc(out.Modules, func(a, b FullModule) int {
		return cmp.Or(
			strings.Compare(a.Name, b.Name),
			strings.Compare(a.ContextHash, b.ContextHash))
	})
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteMake writes a make rule of r.
// Targets are the translation unit's -MT targets, or <stem>.o of its
// main file.
func WriteMake(w io.Writer, r *scandeps.Report) error {
	targets := r.DependencyOutputOpts.Targets
	if len(targets) == 0 {
		base := filepath.Base(r.MainFile)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		targets = []string{makeutil.QuoteTarget(stem + ".o")}
	}
	var inputs []string
	seen := make(map[string]bool)
	add := func(f string) {
		if seen[f] {
			return
		}
		seen[f] = true
		inputs = append(inputs, f)
	}
	for _, d := range r.DependencyOutputOpts.ExtraDeps {
		add(d.Path)
	}
	for _, f := range r.FileDeps {
		add(f)
	}
	return makeutil.WriteRule(w, targets, inputs)
}

// P1689Output is C++ named module dependency info in P1689 format.
type P1689Output struct {
	Revision int         `json:"revision"`
	Rules    []P1689Rule `json:"rules"`
	Version  int         `json:"version"`
}

// P1689Rule is a rule of a translation unit in P1689Output.
type P1689Rule struct {
	PrimaryOutput string          `json:"primary-output,omitempty"`
	Provides      []P1689Provided `json:"provides,omitempty"`
	Requires      []P1689Required `json:"requires,omitempty"`
}

// P1689Provided is a module provided by a rule.
type P1689Provided struct {
	LogicalName string `json:"logical-name"`
	SourcePath  string `json:"source-path,omitempty"`
	IsInterface bool   `json:"is-interface"`
}

// P1689Required is a module required by a rule.
type P1689Required struct {
	LogicalName string `json:"logical-name"`
	SourcePath  string `json:"source-path,omitempty"`
}

// P1689 returns P1689 output of reports.
func P1689(reports []*scandeps.Report) P1689Output {
	out := P1689Output{
		Rules:   []P1689Rule{},
		Version: 1,
	}
	for _, r := range reports {
		rule := P1689Rule{
			PrimaryOutput: r.OutputFile,
		}
		if p := r.Provided; p != nil {
			rule.Provides = append(rule.Provides, P1689Provided{
				LogicalName: p.ModuleName,
				SourcePath:  p.SourcePath,
				IsInterface: p.IsStdCXXModuleInterface,
			})
		}
		for _, req := range r.Required {
			rule.Requires = append(rule.Requires, P1689Required{
				LogicalName: req.ModuleName,
				SourcePath:  req.SourcePath,
			})
		}
		out.Rules = append(out.Rules, rule)
	}
	return out
}
