// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"errors"
	"fmt"
)

// ErrInconsistentState is an error when the scanner finds its own state,
// or state given by the frontend, inconsistent.
// A scan that hits it produces no result.
var ErrInconsistentState = errors.New("inconsistent scanner state")

// FatalError is an error that aborts a scan.
type FatalError struct {
	// Module is the module being resolved, if any.
	Module string
	Msg    string
}

func (e *FatalError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("%v: %s", ErrInconsistentState, e.Msg)
	}
	return fmt.Sprintf("%v: module %s: %s", ErrInconsistentState, e.Module, e.Msg)
}

func (e *FatalError) Unwrap() error {
	return ErrInconsistentState
}

func fatalf(module, format string, args ...any) error {
	return &FatalError{
		Module: module,
		Msg:    fmt.Sprintf(format, args...),
	}
}
