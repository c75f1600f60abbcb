// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scanconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"go.chromium.org/infra/build/modscan/scandeps"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		fname string
		flags map[string]string
		want  *Config
	}{
		{
			name:  "default",
			fname: "testdata/scan.star",
			want: &Config{
				Options: scandeps.Options{
					StableDirs: []string{"/sdk", "/toolchain"},
					Optimize:   scandeps.OptimizeAll,
					Format:     scandeps.FormatFull,
					PrebuiltModulesAttrs: scandeps.PrebuiltModulesAttrs{
						"/prebuilt/base.pcm": {
							IsInStableDir: true,
							Dependents:    []string{"/prebuilt/ui.pcm"},
						},
						"/prebuilt/ui.pcm": {
							IsInStableDir: true,
							VFS:           map[string]bool{"/out/overlay.yaml": true},
						},
					},
				},
				ModuleFilesDir: "modules",
			},
		},
		{
			name:  "flags",
			fname: "testdata/scan.star",
			flags: map[string]string{
				"keep_cwd":    "true",
				"eager":       "true",
				"format":      "p1689",
				"base_stable": "false",
			},
			want: &Config{
				Options: scandeps.Options{
					StableDirs: []string{"/sdk", "/toolchain"},
					Optimize:   scandeps.OptimizeHeaderSearch | scandeps.OptimizeVFS | scandeps.OptimizeSystemWarnings,
					EagerLoad:  true,
					Format:     scandeps.FormatP1689,
					PrebuiltModulesAttrs: scandeps.PrebuiltModulesAttrs{
						"/prebuilt/base.pcm": {
							Dependents: []string{"/prebuilt/ui.pcm"},
						},
						// base is not in stable dirs, so ui that
						// depends on it is not either.
						"/prebuilt/ui.pcm": {
							VFS: map[string]bool{"/out/overlay.yaml": true},
						},
					},
				},
				ModuleFilesDir: "modules",
			},
		},
		{
			name:  "empty",
			fname: "testdata/empty.star",
			want: &Config{
				Options: scandeps.Options{
					Optimize: scandeps.OptimizeAll,
					Format:   scandeps.FormatFull,
				},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(ctx, tc.fname, tc.flags)
			if err != nil {
				t.Fatalf("Load(ctx, %q, %v)=_, %v; want nil error", tc.fname, tc.flags, err)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Load(ctx, %q, %v) diff -want +got:\n%s", tc.fname, tc.flags, diff)
			}
		})
	}
}

func TestLoad_error(t *testing.T) {
	ctx := context.Background()
	for _, fname := range []string{
		"testdata/nonexistent.star",
		"testdata/no_init.star",
		"testdata/not_module.star",
		"testdata/bad_optimize.star",
		"testdata/bad_prebuilt.star",
		"testdata/fail.star",
		"testdata/cycle.star",
	} {
		t.Run(fname, func(t *testing.T) {
			_, err := Load(ctx, fname, nil)
			if err == nil {
				t.Errorf("Load(ctx, %q, nil)=_, nil; want error", fname)
			}
		})
	}
}

func TestLoad_configError(t *testing.T) {
	ctx := context.Background()
	_, err := Load(ctx, "testdata/fail.star", nil)
	var cerr ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Load(ctx, %q, nil)=_, %v; want ConfigError", "testdata/fail.star", err)
	}
	if cerr.Backtrace() == "" {
		t.Errorf("Backtrace()=%q; want non-empty", cerr.Backtrace())
	}
}
