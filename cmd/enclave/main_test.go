// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams(`{"n": 12345678901234567890, "list": [true, null]}`)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"n": json.Number("12345678901234567890"), "list": []any{true, nil}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"", "{", "{} {}", "nope"} {
		if _, err := parseParams(bad); err == nil {
			t.Errorf("parseParams(%q) succeeded", bad)
		}
	}
}
