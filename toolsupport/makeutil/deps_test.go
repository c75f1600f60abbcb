// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package makeutil

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDeps(t *testing.T) {
	for _, tc := range []struct {
		name     string
		depsfile []byte
		want     []string
	}{
		{
			name:     "simple",
			depsfile: []byte("foo.o:\tbar baz qux"),
			want: []string{
				"bar",
				"baz",
				"qux",
			},
		},
		{
			name:     "spaceinname",
			depsfile: []byte(`foo\ bar.o: baz\ qux`),
			want: []string{
				"baz qux",
			},
		},
		{
			name:     "newlinewhitespaces",
			depsfile: []byte("foo.o :\tbar\\\n\tbaz\\\r\n  qux"),
			want: []string{
				"bar",
				"baz",
				"qux",
			},
		},
		{
			name:     "backslashes",
			depsfile: []byte("foo\\bar.o: baz\\qux\\\n  quux\\corge"),
			want: []string{
				`baz\qux`,
				`quux\corge`,
			},
		},
		{
			name:     "dollar-and-hash",
			depsfile: []byte(`foo.pcm: a$$b.h c\#d.h`),
			want: []string{
				"a$b.h",
				"c#d.h",
			},
		},
		{
			name: "multi-rules",
			depsfile: []byte(`out/M-ABC.pcm: /src/module.modulemap /src/a.h

/src/a.h:
`),
			want: []string{
				"/src/module.modulemap",
				"/src/a.h",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDeps(tc.depsfile)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseDeps(%q) -want +got:\n%s", tc.depsfile, diff)
			}
		})
	}
}

func TestQuoteTarget(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{in: "out/M-1.pcm", want: "out/M-1.pcm"},
		{in: "out dir/M.pcm", want: `out\ dir/M.pcm`},
		{in: `out\ dir/M.pcm`, want: `out\\\ dir/M.pcm`},
		{in: "out/$M.pcm", want: "out/$$M.pcm"},
		{in: "out/#M.pcm", want: `out/\#M.pcm`},
		{in: "a\tb", want: "a\\\tb"},
	} {
		got := QuoteTarget(tc.in)
		if got != tc.want {
			t.Errorf("QuoteTarget(%q)=%q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteRuleRoundTrip(t *testing.T) {
	inputs := []string{
		"/src/module.modulemap",
		"/src/dir with space/a.h",
		"/src/very/long/path/to/some/header/that/forces/wrapping/of/the/rule.h",
		"/src/$weird#name.h",
	}
	var sb strings.Builder
	err := WriteRule(&sb, []string{QuoteTarget("out/M-1.pcm")}, inputs)
	if err != nil {
		t.Fatalf("WriteRule(...)=%v; want nil err", err)
	}
	if !strings.Contains(sb.String(), "\\\n") {
		t.Errorf("WriteRule(...)=%q; want wrapped rule", sb.String())
	}
	got := ParseDeps([]byte(sb.String()))
	if diff := cmp.Diff(inputs, got); diff != "" {
		t.Errorf("ParseDeps(WriteRule(...)) -want +got:\n%s", diff)
	}
}
