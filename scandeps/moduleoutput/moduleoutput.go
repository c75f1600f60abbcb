// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package moduleoutput provides output paths of explicit module builds.
package moduleoutput

import (
	"path/filepath"

	"go.chromium.org/infra/build/modscan/scandeps"
)

// Controller puts outputs of a module in <Dir>/<hash>/<name>-<hash>.<ext>.
// Outputs depend only on the module ID.
type Controller struct {
	Dir string
}

var _ scandeps.OutputController = Controller{}

// LookupModuleOutput returns the output path of kind for md.
// It returns empty for dependency targets, so the module file is used.
func (c Controller) LookupModuleOutput(md *scandeps.ModuleDeps, kind scandeps.ModuleOutputKind) string {
	var ext string
	switch kind {
	case scandeps.ModuleOutputModuleFile:
		ext = ".pcm"
	case scandeps.ModuleOutputDiagnosticSerializationFile:
		ext = ".diag"
	case scandeps.ModuleOutputDependencyFile:
		ext = ".d"
	default:
		return ""
	}
	id := md.ID
	return filepath.Join(c.Dir, id.ContextHash, id.ModuleName+"-"+id.ContextHash+ext)
}
