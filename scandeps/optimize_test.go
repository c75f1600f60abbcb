// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

func TestParseOptimizations(t *testing.T) {
	for _, tc := range []struct {
		names   []string
		want    Optimizations
		str     string
		wantErr bool
	}{
		{
			names: nil,
			want:  OptimizeNone,
			str:   "none",
		},
		{
			names: []string{"all"},
			want:  OptimizeAll,
			str:   "all",
		},
		{
			names: []string{"vfs", "ignore-cwd"},
			want:  OptimizeVFS | OptimizeIgnoreCWD,
			str:   "vfs,ignore-cwd",
		},
		{
			names: []string{"none", "header-search"},
			want:  OptimizeHeaderSearch,
			str:   "header-search",
		},
		{
			names: []string{"system-warnings", "header-search", "vfs", "ignore-cwd"},
			want:  OptimizeAll,
			str:   "all",
		},
		{
			names:   []string{"fast"},
			wantErr: true,
		},
	} {
		got, err := ParseOptimizations(tc.names)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseOptimizations(%q)=%v, %v; want err=%t", tc.names, got, err, tc.wantErr)
			continue
		}
		if tc.wantErr {
			continue
		}
		if got != tc.want {
			t.Errorf("ParseOptimizations(%q)=%v; want %v", tc.names, got, tc.want)
		}
		if got.String() != tc.str {
			t.Errorf("ParseOptimizations(%q).String()=%q; want %q", tc.names, got.String(), tc.str)
		}
	}
}

func TestOptimizeDiagnosticOpts(t *testing.T) {
	for _, tc := range []struct {
		name     string
		system   bool
		warnings []string
		want     []string
	}{
		{
			name:     "non system",
			warnings: []string{"all", "error"},
			want:     []string{"all", "error"},
		},
		{
			name:     "system",
			system:   true,
			warnings: []string{"all", "error"},
		},
		{
			name:     "system headers",
			system:   true,
			warnings: []string{"all", "system-headers"},
			want:     []string{"all", "system-headers"},
		},
		{
			name:     "system headers disabled",
			system:   true,
			warnings: []string{"system-headers", "all", "no-system-headers"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			diag := &clangutil.DiagnosticOptions{
				Warnings: tc.warnings,
				Remarks:  []string{"pass"},
			}
			optimizeDiagnosticOpts(diag, tc.system)
			if diff := cmp.Diff(tc.want, diag.Warnings); diff != "" {
				t.Errorf("Warnings diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestRootPath(t *testing.T) {
	for _, tc := range []struct {
		p    string
		want string
	}{
		{p: "/a/b", want: "/"},
		{p: "/", want: "/"},
		{p: "a/b", want: ""},
	} {
		if got := rootPath(tc.p); got != tc.want {
			t.Errorf("rootPath(%q)=%q; want %q", tc.p, got, tc.want)
		}
	}
}
