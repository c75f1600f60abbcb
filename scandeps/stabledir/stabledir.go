// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stabledir classifies paths and compiler options as being in
// stable directories, i.e. directories whose contents don't vary between
// unrelated build trees (sysroots, toolchains, SDKs).
// Modules that only depend on stable directories can be shared.
package stabledir

import (
	"path/filepath"
	"strings"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// IsPathInStableDir reports whether p is under one of dirs.
// p must be absolute. Paths are compared by whole path components,
// so "/opt/foo" is not under "/opt/f".
func IsPathInStableDir(dirs []string, p string) bool {
	if !filepath.IsAbs(p) {
		return false
	}
	elems := splitPath(p)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if hasPrefix(elems, splitPath(dir)) {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	p = strings.TrimSuffix(filepath.Clean(p), string(filepath.Separator))
	return strings.Split(p, string(filepath.Separator))
}

func hasPrefix(elems, prefix []string) bool {
	if len(prefix) > len(elems) {
		return false
	}
	for i := range prefix {
		if elems[i] != prefix[i] {
			return false
		}
	}
	return true
}

// AreOptionsInStableDir reports whether header search paths of hs are
// in dirs.
// Sysroot and resource dir of hs must be in dirs already; it panics
// otherwise.
func AreOptionsInStableDir(dirs []string, hs *clangutil.HeaderSearchOptions) bool {
	if !IsPathInStableDir(dirs, hs.Sysroot) {
		panic("stabledir: sysroot " + hs.Sysroot + " is not in stable dirs")
	}
	if !IsPathInStableDir(dirs, hs.ResourceDir) {
		panic("stabledir: resource dir " + hs.ResourceDir + " is not in stable dirs")
	}
	for _, e := range hs.UserEntries {
		if !e.IgnoreSysRoot {
			continue
		}
		if !IsPathInStableDir(dirs, e.Path) {
			return false
		}
	}
	for _, p := range hs.SystemHeaderPrefixes {
		if !IsPathInStableDir(dirs, p.Prefix) {
			return false
		}
	}
	return true
}

// Filter returns dirs if both sysroot and resourceDir are in dirs.
// Otherwise, it returns nil, and no module would be classified as stable.
func Filter(dirs []string, sysroot, resourceDir string) []string {
	if len(dirs) == 0 {
		return nil
	}
	if !IsPathInStableDir(dirs, sysroot) || !IsPathInStableDir(dirs, resourceDir) {
		return nil
	}
	return dirs
}
