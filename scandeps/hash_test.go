// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"regexp"
	"testing"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

func TestContextHash(t *testing.T) {
	inv, err := clangutil.Parse([]string{
		"-cc1", "-emit-module", "-fmodules", "-fmodule-name=M",
		"-isysroot", "/sdk",
		"-x", "c++-module-map", "/sdk/m/module.modulemap",
	})
	if err != nil {
		t.Fatal(err)
	}
	md := &ModuleDeps{
		ID: ModuleID{ModuleName: "M"},
		ClangModuleDeps: []ModuleID{
			{ModuleName: "A", ContextHash: "1"},
			{ModuleName: "B", ContextHash: "2"},
		},
	}
	base := ContextHash(md, inv, false, false, "/out")
	if !regexp.MustCompile(`^[0-9A-Z]+$`).MatchString(base) {
		t.Errorf("ContextHash=%q; want upper case base 36", base)
	}
	if got := ContextHash(md, inv, false, false, "/out"); got != base {
		t.Errorf("ContextHash=%q; want %q for the same inputs", got, base)
	}

	otherInput := inv.Clone()
	otherInput.MutFrontendOpts().Inputs[0].File = "/other/module.modulemap"
	if got := ContextHash(md, otherInput, false, false, "/out"); got != base {
		t.Errorf("ContextHash with other input=%q; want %q", got, base)
	}

	reordered := &ModuleDeps{
		ID: md.ID,
		ClangModuleDeps: []ModuleID{
			md.ClangModuleDeps[1],
			md.ClangModuleDeps[0],
		},
	}
	otherArgs := inv.Clone()
	otherArgs.MutHeaderSearchOpts().Sysroot = "/sdk2"

	for _, tc := range []struct {
		name string
		hash string
	}{
		{
			name: "eager",
			hash: ContextHash(md, inv, true, false, "/out"),
		},
		{
			name: "cwd",
			hash: ContextHash(md, inv, false, false, "/out2"),
		},
		{
			name: "deps order",
			hash: ContextHash(reordered, inv, false, false, "/out"),
		},
		{
			name: "args",
			hash: ContextHash(md, otherArgs, false, false, "/out"),
		},
	} {
		if tc.hash == base {
			t.Errorf("%s: ContextHash=%q; want different from %q", tc.name, tc.hash, base)
		}
	}

	for _, cwd := range []string{"/out", "/out2", ""} {
		if got, want := ContextHash(md, inv, false, true, cwd), ContextHash(md, inv, false, false, ""); got != want {
			t.Errorf("ContextHash(ignoreCWD, %q)=%q; want %q", cwd, got, want)
		}
	}
}

func TestInvocationHash(t *testing.T) {
	parse := func(args ...string) *clangutil.Invocation {
		t.Helper()
		inv, err := clangutil.Parse(args)
		if err != nil {
			t.Fatal(err)
		}
		return inv
	}
	a := InvocationHash(parse("-cc1", "-emit-obj", "-x", "c++", "a.cc"))
	b := InvocationHash(parse("-cc1", "-emit-obj", "-x", "c++", "b.cc"))
	if a == b {
		t.Errorf("InvocationHash for a.cc and b.cc=%q; want different", a)
	}
	if again := InvocationHash(parse("-cc1", "-emit-obj", "-x", "c++", "a.cc")); again != a {
		t.Errorf("InvocationHash=%q; want %q", again, a)
	}
}
