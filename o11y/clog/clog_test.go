// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog_test is a test for clog package.
package clog_test

import (
	"context"
	"sync"
	"testing"

	"cloud.google.com/go/logging"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/modscan/o11y/clog"
)

func TestDefaultLogger(t *testing.T) {
	ctx := context.Background()

	l := clog.FromContext(ctx)
	if l == nil {
		t.Fatalf("FromContext(ctx)=nil; want default logger")
	}
	defer l.Close()

	clog.Infof(ctx, "Info")
	clog.Warningf(ctx, "Warning")
	clog.Errorf(ctx, "Error")
}

func TestSpanLabels(t *testing.T) {
	ctx := clog.NewContext(context.Background(), clog.New(context.Background()))
	ctx = clog.NewSpan(ctx, "trace1", "tu", map[string]string{
		"tu": "foo.cc",
	})

	var wg sync.WaitGroup
	for _, m := range []string{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx := clog.NewSpan(ctx, "", "module", map[string]string{
				"module": m,
			})
			got := clog.FromContext(cctx).Labels()
			want := map[string]string{
				"tu":     "foo.cc",
				"module": m,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Labels diff -want +got:\n%s", diff)
			}
			clog.Infof(cctx, "resolving")
		}()
	}
	wg.Wait()

	if got := clog.FromContext(ctx).Labels(); len(got) != 1 {
		t.Errorf("parent labels=%v; want only tu", got)
	}
}

func TestDefaultFormatter(t *testing.T) {
	for _, tc := range []struct {
		name  string
		entry logging.Entry
		want  string
	}{
		{
			name:  "nolabel",
			entry: logging.Entry{Payload: "hello"},
			want:  "hello",
		},
		{
			name: "labels",
			entry: logging.Entry{
				Payload: "hello",
				Labels: map[string]string{
					"tu":     "a.cc",
					"module": "M",
				},
			},
			want: "module=M tu=a.cc hello",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := clog.DefaultFormatter(tc.entry)
			if got != tc.want {
				t.Errorf("DefaultFormatter(%v)=%q; want %q", tc.entry, got, tc.want)
			}
		})
	}
}
