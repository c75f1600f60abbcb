// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scanconfig

import (
	"fmt"
	"os"
	"path"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
)

// fileLoader is a Starlark module loader.
// Relative modules are loaded from the directory of the loading module.
type fileLoader struct {
	predeclared starlark.StringDict

	// loaded modules. nil value while loading.
	modules map[string]starlark.StringDict
}

// Load loads a Starlark module.
func (l *fileLoader) Load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	curname := thread.Local("modulename").(string)
	fname := module
	if !path.IsAbs(fname) {
		fname = path.Join(path.Dir(curname), module)
	}
	log.Debugf("load %s from %s", fname, curname)
	if l.modules == nil {
		l.modules = make(map[string]starlark.StringDict)
	}
	globals, ok := l.modules[fname]
	if ok {
		if globals == nil {
			return nil, fmt.Errorf("cycle in load of %s from %s", fname, curname)
		}
		return globals, nil
	}
	l.modules[fname] = nil
	t := &starlark.Thread{
		Name: "module " + fname,
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: l.Load,
	}
	t.SetLocal("modulename", fname)
	globals, err := l.exec(t, fname)
	if err != nil {
		delete(l.modules, fname)
		return nil, err
	}
	l.modules[fname] = globals
	return globals, nil
}

func (l *fileLoader) exec(thread *starlark.Thread, fname string) (starlark.StringDict, error) {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", fname, err)
	}
	return starlark.ExecFile(thread, fname, buf, l.predeclared)
}
