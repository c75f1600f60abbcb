// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scanconfig

import (
	"fmt"
	"runtime"

	starjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"go.chromium.org/infra/build/modscan/scandeps"
)

func builtinModule() starlark.StringDict {
	runtimeModule := &starlarkstruct.Module{
		Name: "runtime",
		Members: map[string]starlark.Value{
			"num_cpu": starlark.MakeInt(runtime.NumCPU()),
			"os":      starlark.String(runtime.GOOS),
			"arch":    starlark.String(runtime.GOARCH),
		},
	}
	runtimeModule.Freeze()
	return starlark.StringDict{
		"runtime": runtimeModule,
		"json":    starjson.Module,
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"module":  starlark.NewBuiltin("module", starlarkstruct.MakeModule),
	}
}

func starFlags(flags map[string]string) starlark.Value {
	dict := starlark.NewDict(len(flags))
	for k, v := range flags {
		dict.SetKey(starlark.String(k), starlark.String(v))
	}
	return dict
}

func unpackList(v starlark.Value) ([]string, error) {
	iterator := starlark.Iterate(v)
	if iterator == nil {
		return nil, fmt.Errorf("got %v; want iterator", v.Type())
	}
	defer iterator.Done()
	var elem starlark.Value
	var list []string
	for iterator.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, fmt.Errorf("got %v in %v; want string", elem.Type(), v.Type())
		}
		list = append(list, s)
	}
	return list, nil
}

// unpackPrebuiltModules unpacks a dict of module file name to
// struct(is_in_stable_dir, vfs, dependents).
// Modules not in stable dirs make their dependents not in stable dirs.
func unpackPrebuiltModules(v starlark.Value) (scandeps.PrebuiltModulesAttrs, error) {
	dict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("got %s; want dict", v.Type())
	}
	m := make(scandeps.PrebuiltModulesAttrs, dict.Len())
	for _, item := range dict.Items() {
		pcm, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("key %s: want string", item[0])
		}
		attrs, err := unpackPrebuiltModule(item[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pcm, err)
		}
		m[pcm] = attrs
	}
	for pcm, attrs := range m {
		if !attrs.IsInStableDir {
			m.UpdateDependentsNotInStableDirs(pcm)
		}
	}
	return m, nil
}

func unpackPrebuiltModule(v starlark.Value) (*scandeps.PrebuiltModuleAttrs, error) {
	s, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil, fmt.Errorf("got %s; want struct", v.Type())
	}
	attrs := &scandeps.PrebuiltModuleAttrs{}
	for _, name := range s.AttrNames() {
		av, err := s.Attr(name)
		if err != nil {
			return nil, err
		}
		switch name {
		case "is_in_stable_dir":
			b, ok := av.(starlark.Bool)
			if !ok {
				return nil, fmt.Errorf("%s: got %s; want bool", name, av.Type())
			}
			attrs.IsInStableDir = bool(b)
		case "vfs":
			files, err := unpackList(av)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			attrs.VFS = make(map[string]bool)
			for _, f := range files {
				attrs.VFS[f] = true
			}
		case "dependents":
			attrs.Dependents, err = unpackList(av)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		default:
			return nil, fmt.Errorf("unknown field %q", name)
		}
	}
	return attrs, nil
}
