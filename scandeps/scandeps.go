// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"fmt"
	"time"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// Source is a translation unit to scan.
type Source interface {
	Frontend

	// Invocation returns the translation unit's command line.
	Invocation() *clangutil.Invocation

	// Replay sends preprocessing events of the translation unit to c,
	// ending with EndOfMainFile.
	Replay(ctx context.Context, c *Collector) error
}

// ScanDeps is a module dependency scanner.
// It is safe to use a ScanDeps for concurrent scans; each scan has its
// own Collector.
type ScanDeps struct {
	opts       Options
	controller OutputController
}

// New creates new ScanDeps.
func New(opts Options, controller OutputController) *ScanDeps {
	return &ScanDeps{
		opts:       opts,
		controller: controller,
	}
}

// Scan scans src and returns its report.
func (s *ScanDeps) Scan(ctx context.Context, src Source) (*Report, error) {
	started := time.Now()
	inv := src.Invocation()
	r := &Report{}
	c := NewCollector(src, inv, r, s.controller, s.opts)
	err := src.Replay(ctx, c)
	if err != nil {
		return nil, err
	}
	if c.MainFile() == "" {
		return nil, fmt.Errorf("no end of main file in %s", src.MainFile())
	}
	r.MainFile = c.MainFile()
	r.OutputFile = inv.FrontendOpts().OutputFile

	tu := inv.DeepClone()
	err = c.ApplyDiscoveredDependencies(tu)
	if err != nil {
		return nil, err
	}
	r.CommandLine = tu.CommandLine()
	clog.Infof(ctx, "scan %s: modules=%d direct=%d files=%d in %s", r.MainFile, len(r.ModuleDeps), len(r.DirectDeps), len(r.FileDeps), time.Since(started))
	return r, nil
}
