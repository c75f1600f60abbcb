// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package osfs provides OS Filesystem access.
package osfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/o11y/iometrics"
	"go.chromium.org/infra/build/modscan/scandeps"
)

// OSFS provides OS Filesystem access.
// It counts metrics by iometrics.
type OSFS struct {
	*iometrics.IOMetrics
}

// New creates new OSFS.
func New(name string) *OSFS {
	return &OSFS{IOMetrics: iometrics.New(name)}
}

func logSlow(ctx context.Context, name string, dur time.Duration, err error) {
	buf := make([]byte, 4*1024)
	n := runtime.Stack(buf, false)
	clog.Warningf(ctx, "slow op %s: %s %v\n%s", name, dur, err, buf[:n])
}

// Stat returns a FileInfo describing the named file.
func (fs *OSFS) Stat(ctx context.Context, fname string) (fs.FileInfo, error) {
	started := time.Now()
	fi, err := os.Stat(fname)
	fs.OpsDone(err)
	if dur := time.Since(started); dur > 1*time.Minute {
		logSlow(ctx, fname, dur, err)
	}
	return fi, err
}

// RealPath returns the absolute path of fname with symlinks resolved.
func (fs *OSFS) RealPath(ctx context.Context, fname string) (string, error) {
	started := time.Now()
	p, err := filepath.EvalSymlinks(fname)
	if err == nil {
		p, err = filepath.Abs(p)
	}
	fs.OpsDone(err)
	if dur := time.Since(started); dur > 1*time.Minute {
		logSlow(ctx, fname, dur, err)
	}
	return p, err
}

// ReadFile reads the named file.
func (fs *OSFS) ReadFile(ctx context.Context, fname string) ([]byte, error) {
	started := time.Now()
	buf, err := os.ReadFile(fname)
	fs.ReadDone(len(buf), err)
	if dur := time.Since(started); dur > 1*time.Minute {
		logSlow(ctx, fname, dur, err)
	}
	return buf, err
}

// WriteFile writes data to the named file, creating it if necessary.
func (fs *OSFS) WriteFile(ctx context.Context, name string, data []byte, perm fs.FileMode) error {
	started := time.Now()
	err := os.WriteFile(name, data, perm)
	fs.WriteDone(len(data), err)
	if dur := time.Since(started); dur > 1*time.Minute {
		logSlow(ctx, name, dur, err)
	}
	return err
}

// MkdirAll creates a directory named path, along with any necessary parents.
func (fs *OSFS) MkdirAll(ctx context.Context, dirname string, perm fs.FileMode) error {
	started := time.Now()
	err := os.MkdirAll(dirname, perm)
	fs.OpsDone(err)
	if dur := time.Since(started); dur > 1*time.Minute {
		logSlow(ctx, dirname, dur, err)
	}
	return err
}

// ScanFS returns the file system for a scan in dir.
// Relative names are resolved against dir.
func (fs *OSFS) ScanFS(ctx context.Context, dir string) scandeps.FileSystem {
	return scanFS{ctx: ctx, fs: fs, dir: dir}
}

type scanFS struct {
	ctx context.Context
	fs  *OSFS
	dir string
}

func (s scanFS) path(name string) string {
	if filepath.IsAbs(name) || s.dir == "" {
		return name
	}
	return filepath.Join(s.dir, name)
}

func (s scanFS) Getwd() (string, error) {
	if s.dir != "" {
		return s.dir, nil
	}
	return os.Getwd()
}

func (s scanFS) Stat(name string) (fs.FileInfo, error) {
	return s.fs.Stat(s.ctx, s.path(name))
}

func (s scanFS) RealPath(name string) (string, error) {
	return s.fs.RealPath(s.ctx, s.path(name))
}
