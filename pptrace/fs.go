// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package pptrace

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"
)

// recordedFS is a file system of files recorded in a trace.
// Module map files, main file and module file inputs are known to exist.
type recordedFS struct {
	dir      string
	files    map[string]bool
	realDirs map[string]string
}

func newRecordedFS(t *Trace) *recordedFS {
	rfs := &recordedFS{
		dir:      t.WorkingDir,
		files:    make(map[string]bool),
		realDirs: make(map[string]string),
	}
	add := func(name string) {
		if name == "" {
			return
		}
		rfs.files[rfs.path(name)] = true
	}
	add(t.MainFile)
	for _, f := range t.Files {
		add(f)
	}
	for _, m := range t.Modules {
		add(m.ModuleMapFile)
	}
	for _, mf := range t.ModuleFiles {
		for _, in := range mf.Inputs {
			name := in.Filename
			if !filepath.IsAbs(name) && mf.BaseDirectory != "" {
				name = filepath.Join(mf.BaseDirectory, name)
			}
			add(name)
		}
	}
	for dir, real := range t.RealDirs {
		rfs.realDirs[rfs.path(dir)] = rfs.path(real)
	}
	return rfs
}

func (rfs *recordedFS) path(name string) string {
	if !filepath.IsAbs(name) && rfs.dir != "" {
		name = filepath.Join(rfs.dir, name)
	}
	return filepath.Clean(name)
}

func (rfs *recordedFS) Getwd() (string, error) {
	if rfs.dir == "" {
		return "", errors.New("no working-dir in trace")
	}
	return rfs.dir, nil
}

func (rfs *recordedFS) Stat(name string) (fs.FileInfo, error) {
	if !rfs.files[rfs.path(name)] {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return fileInfo{name: filepath.Base(name)}, nil
}

// RealPath resolves the longest recorded directory prefix of name.
func (rfs *recordedFS) RealPath(name string) (string, error) {
	p := rfs.path(name)
	for dir, rest := p, ""; ; {
		if real, ok := rfs.realDirs[dir]; ok {
			return filepath.Join(real, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return p, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

type fileInfo struct {
	name string
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return 0 }
func (fi fileInfo) Mode() fs.FileMode  { return 0644 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return nil }
