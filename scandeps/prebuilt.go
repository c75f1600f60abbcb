// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

// PrebuiltModuleAttrs are attributes of a prebuilt module file, known
// from the build that produced it.
type PrebuiltModuleAttrs struct {
	// VFS is a set of VFS overlay files used to build the module.
	VFS map[string]bool `json:"vfs,omitempty"`

	IsInStableDir bool `json:"is-in-stable-dir"`

	// Dependents are module files of prebuilt modules that import
	// the module.
	Dependents []string `json:"dependents,omitempty"`
}

// PrebuiltModulesAttrs maps prebuilt module file name to its attributes.
type PrebuiltModulesAttrs map[string]*PrebuiltModuleAttrs

// UpdateDependentsNotInStableDirs marks pcmFile, and all prebuilt modules
// that depend on it, as not in stable directories.
func (m PrebuiltModulesAttrs) UpdateDependentsNotInStableDirs(pcmFile string) {
	attrs, ok := m[pcmFile]
	if !ok || attrs == nil {
		return
	}
	attrs.IsInStableDir = false
	queue := []*PrebuiltModuleAttrs{attrs}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		for _, dep := range a.Dependents {
			da, ok := m[dep]
			if !ok || da == nil || !da.IsInStableDir {
				// already marked, or unknown.
				continue
			}
			da.IsInStableDir = false
			queue = append(queue, da)
		}
	}
}
