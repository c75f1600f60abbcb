// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scanconfig provides scan config for `modscan scan`.
package scanconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"go.chromium.org/infra/build/modscan/o11y/clog"
	"go.chromium.org/infra/build/modscan/scandeps"
)

const configEntryPoint = "init"

// Config is a scan config.
type Config struct {
	// Options are options of scans.
	Options scandeps.Options

	// ModuleFilesDir is a directory to put explicit module outputs.
	ModuleFilesDir string
}

// ConfigError is error of the config's init.
type ConfigError struct {
	fn  starlark.Value
	err *starlark.EvalError
}

func (e ConfigError) Error() string {
	if fn, ok := e.fn.(*starlark.Function); ok {
		return fmt.Sprintf("failed to run %s[%s:%s]: %v", configEntryPoint, fn.Position(), fn.Name(), e.err)
	}
	return fmt.Sprintf("failed to run %s[%s]: %v", configEntryPoint, e.fn, e.err)
}

func (e ConfigError) Backtrace() string {
	return e.err.CallStack.String()
}

func (e ConfigError) Unwrap() error {
	return e.err
}

// Load loads the config in fname, and runs its `init` with flags.
func Load(ctx context.Context, fname string, flags map[string]string) (*Config, error) {
	loader := &fileLoader{
		predeclared: builtinModule(),
	}
	thread := &starlark.Thread{
		Name: "load",
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: loader.Load,
	}
	thread.SetLocal("modulename", fname)
	globals, err := loader.exec(thread, fname)
	if err != nil {
		log.Warnf("thread:%s failed to exec file %s: %v", thread.Name, fname, err)
		var eerr *starlark.EvalError
		if errors.As(err, &eerr) {
			log.Warnf("stacktrace:\n%s", eerr.Backtrace())
		}
		return nil, err
	}
	fun, ok := globals[configEntryPoint]
	if !ok {
		return nil, fmt.Errorf("%s is not defined in %s", configEntryPoint, fname)
	}
	if _, ok := fun.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%s %s is not callable in %s", configEntryPoint, fun.Type(), fname)
	}

	thread = &starlark.Thread{
		Name: configEntryPoint,
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load is not allowed in init")
		},
	}
	sctx := starlarkstruct.FromStringDict(starlark.String("ctx"), map[string]starlark.Value{
		"flags": starFlags(flags),
	})
	ret, err := starlark.Call(thread, fun, []starlark.Value{sctx}, nil)
	if err != nil {
		log.Warnf("thread:%s failed to run %s: %v", thread.Name, configEntryPoint, err)
		var eerr *starlark.EvalError
		if errors.As(err, &eerr) {
			log.Warnf("stacktrace:\n%s", eerr.Backtrace())
			return nil, ConfigError{fn: fun, err: eerr}
		}
		return nil, fmt.Errorf("failed to run %s: %w", configEntryPoint, err)
	}
	m, ok := ret.(*starlarkstruct.Module)
	if !ok {
		return nil, fmt.Errorf("%s returned %s, want module", configEntryPoint, ret.Type())
	}
	cfg, err := unpackConfig(m)
	if err != nil {
		return nil, fmt.Errorf("bad config in %s: %w", fname, err)
	}
	clog.Infof(ctx, "config %s: stable_dirs=%q optimize=%s eager_load=%t format=%s prebuilt=%d", fname, cfg.Options.StableDirs, cfg.Options.Optimize, cfg.Options.EagerLoad, cfg.Options.Format, len(cfg.Options.PrebuiltModulesAttrs))
	return cfg, nil
}

// unpackConfig unpacks the module returned by `init`.
// All fields are optional.
func unpackConfig(m *starlarkstruct.Module) (*Config, error) {
	cfg := &Config{
		Options: scandeps.Options{
			Optimize: scandeps.OptimizeAll,
			Format:   scandeps.FormatFull,
		},
	}
	var err error
	if v := m.Members["stable_dirs"]; v != nil {
		cfg.Options.StableDirs, err = unpackList(v)
		if err != nil {
			return nil, fmt.Errorf("stable_dirs: %w", err)
		}
	}
	if v := m.Members["optimize"]; v != nil {
		names, err := unpackList(v)
		if err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		cfg.Options.Optimize, err = scandeps.ParseOptimizations(names)
		if err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
	}
	if v := m.Members["eager_load"]; v != nil {
		b, ok := v.(starlark.Bool)
		if !ok {
			return nil, fmt.Errorf("eager_load: got %s; want bool", v.Type())
		}
		cfg.Options.EagerLoad = bool(b)
	}
	if v := m.Members["format"]; v != nil {
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, fmt.Errorf("format: got %s; want string", v.Type())
		}
		cfg.Options.Format, err = scandeps.ParseFormat(s)
		if err != nil {
			return nil, err
		}
	}
	if v := m.Members["module_files_dir"]; v != nil {
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, fmt.Errorf("module_files_dir: got %s; want string", v.Type())
		}
		cfg.ModuleFilesDir = s
	}
	if v := m.Members["prebuilt_modules"]; v != nil {
		cfg.Options.PrebuiltModulesAttrs, err = unpackPrebuiltModules(v)
		if err != nil {
			return nil, fmt.Errorf("prebuilt_modules: %w", err)
		}
	}
	return cfg, nil
}
