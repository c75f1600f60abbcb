// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package moduleoutput

import (
	"testing"

	"go.chromium.org/infra/build/modscan/scandeps"
)

func TestLookupModuleOutput(t *testing.T) {
	c := Controller{Dir: "/out/modules"}
	md := &scandeps.ModuleDeps{
		ID: scandeps.ModuleID{
			ModuleName:  "std",
			ContextHash: "1ABCDEF",
		},
	}
	for _, tc := range []struct {
		kind scandeps.ModuleOutputKind
		want string
	}{
		{
			kind: scandeps.ModuleOutputModuleFile,
			want: "/out/modules/1ABCDEF/std-1ABCDEF.pcm",
		},
		{
			kind: scandeps.ModuleOutputDiagnosticSerializationFile,
			want: "/out/modules/1ABCDEF/std-1ABCDEF.diag",
		},
		{
			kind: scandeps.ModuleOutputDependencyFile,
			want: "/out/modules/1ABCDEF/std-1ABCDEF.d",
		},
		{
			kind: scandeps.ModuleOutputDependencyTargets,
			want: "",
		},
	} {
		t.Run(tc.kind.String(), func(t *testing.T) {
			got := c.LookupModuleOutput(md, tc.kind)
			if got != tc.want {
				t.Errorf("LookupModuleOutput(%v, %v)=%q; want %q", md.ID, tc.kind, got, tc.want)
			}
			// must be idempotent.
			if again := c.LookupModuleOutput(md, tc.kind); again != got {
				t.Errorf("LookupModuleOutput(%v, %v)=%q; want %q on second call", md.ID, tc.kind, again, got)
			}
		})
	}
}
