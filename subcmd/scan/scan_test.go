// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scan

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config := filepath.Join(dir, "scan.star")
	err := os.WriteFile(config, []byte(`
def init(ctx):
    return module(
        "config",
        stable_dirs = ["/sdk"],
        format = ctx.flags.get("format", "full"),
    )
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "app.d")

	c := &run{}
	c.init()
	err = c.Flags.Parse([]string{"-config", config, "-flag", "format=make", "-o", output, "-j", "2"})
	if err != nil {
		t.Fatal(err)
	}
	err = c.run(ctx, []string{"../../pptrace/testdata/app.json"})
	if err != nil {
		t.Fatalf("run=%v; want nil error", err)
	}
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	want := "app.o: /src/app.cc local.h missing.h\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("output diff -want +got:\n%s", diff)
	}
}

func TestRun_errors(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		flags []string
		args  []string
		check func(error) bool
	}{
		{
			name: "no trace",
			check: func(err error) bool {
				return errors.Is(err, flag.ErrHelp)
			},
		},
		{
			name:  "bad format",
			flags: []string{"-format", "ninja"},
			args:  []string{"../../pptrace/testdata/app.json"},
			check: func(err error) bool { return err != nil },
		},
		{
			name: "missing trace",
			args: []string{"testdata/nonexistent.json"},
			check: func(err error) bool {
				return errors.Is(err, os.ErrNotExist)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &run{}
			c.init()
			err := c.Flags.Parse(tc.flags)
			if err != nil {
				t.Fatal(err)
			}
			err = c.run(ctx, tc.args)
			if !tc.check(err) {
				t.Errorf("run(%q)=%v; want error", tc.args, err)
			}
		})
	}
}

func TestKeyValueFlag(t *testing.T) {
	f := make(keyValueFlag)
	for _, s := range []string{"b=2", "a=1", "c="} {
		err := f.Set(s)
		if err != nil {
			t.Errorf("Set(%q)=%v; want nil error", s, err)
		}
	}
	if got, want := f.String(), "a=1,b=2,c="; got != want {
		t.Errorf("String()=%q; want %q", got, want)
	}
	for _, s := range []string{"noequal", "=v"} {
		err := f.Set(s)
		if err == nil {
			t.Errorf("Set(%q)=nil; want error", s)
		}
	}
}
