// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps provides a clang module dependency scanner for
// explicit module builds.
//
// A Collector listens to preprocessing events of one translation unit
//
//	FileEntered         file dependency of the translation unit
//	InclusionDirective  unresolved #include, or #include turned into import
//	ModuleImport        @import or import declaration
//	EndOfMainFile       resolves the module graph and reports it
//
// and resolves every imported clang module into a ModuleDeps:
// its inputs (read from the module file of the implicit build), its
// dependencies on other modules, and a -cc1 command line to build it
// explicitly. The command line is derived from the translation unit's
// one, and is pruned to what the module actually used, so modules
// discovered from different translation units get the same command line
// and the same context hash when they are the same module.
//
// Modules whose inputs are all in stable directories (sysroots, SDKs,
// toolchains) are marked as such, so they can be shared between
// unrelated build trees.
//
// A Collector is for one translation unit and is not safe for concurrent
// use. Scans of different translation units are independent and may run
// concurrently.
package scandeps
