// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package iometrics

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIOMetrics(t *testing.T) {
	m := New("test")
	errFail := errors.New("fail")
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.OpsDone(nil)
			m.ReadDone(10, nil)
			m.WriteDone(5, errFail)
		}()
	}
	wg.Wait()
	m.OpsDone(errFail)

	want := Stats{
		Ops:     11,
		OpsErrs: 1,
		ROps:    10,
		RBytes:  100,
		WOps:    10,
		WBytes:  50,
		WErrs:   10,
	}
	if diff := cmp.Diff(want, m.Stats()); diff != "" {
		t.Errorf("m.Stats() diff -want +got:\n%s", diff)
	}
	if got := m.Name(); got != "test" {
		t.Errorf("m.Name()=%q; want %q", got, "test")
	}
}

func TestIOMetrics_nil(t *testing.T) {
	var m *IOMetrics
	m.OpsDone(nil)
	m.ReadDone(1, nil)
	m.WriteDone(1, nil)
	if diff := cmp.Diff(Stats{}, m.Stats()); diff != "" {
		t.Errorf("nil m.Stats() diff -want +got:\n%s", diff)
	}
}
