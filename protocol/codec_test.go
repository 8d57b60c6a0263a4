// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRequestRoundTrip(t *testing.T) {
	params := map[string]any{
		"id":    json.Number("18446744073709551615"),
		"ratio": json.Number("0.25"),
		"name":  "bodhi",
		"ok":    true,
		"none":  nil,
		"list":  []any{json.Number("1"), "two", []any{}, map[string]any{"deep": []any{false}}},
		"obj":   map[string]any{"k": map[string]any{"k": map[string]any{}}},
	}
	req, err := NewRequest("store", params)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeRequest(bs)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for _, resp := range []*Response{
		Success(map[string]any{"message": "pong"}),
		Failure("Unknown method"),
		Success([]any{json.Number("-3"), nil}),
		Success(nil),
	} {
		bs, err := Encode(resp)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeResponse(bs)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(resp, got); diff != "" {
			t.Errorf("round trip of %s (-want +got):\n%s", bs, diff)
		}
	}
}

func TestWireFormat(t *testing.T) {
	req, err := NewRequest("ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := Encode(req)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(bs), `{"method":"ping","params":{}}`; got != want {
		t.Errorf("request = %s, want %s", got, want)
	}
	bs, err = Encode(Success(map[string]any{"message": "pong"}))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(bs), `{"status":"success","data":{"message":"pong"}}`; got != want {
		t.Errorf("response = %s, want %s", got, want)
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []byte
	}{
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd}},
		{"empty", []byte{}},
		{"not json", []byte("ping")},
		{"array", []byte(`["ping"]`)},
		{"truncated", []byte(`{"method":"ping"`)},
		{"missing method", []byte(`{"params":{}}`)},
		{"empty method", []byte(`{"method":"","params":{}}`)},
		{"wrong type", []byte(`{"method":3}`)},
		{"trailing", []byte(`{"method":"ping"}{"method":"ping"}`)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest(tc.in)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("DecodeRequest(%q) = %v, want DecodeError", tc.in, err)
			}
		})
	}
}

func TestDecodeRequestMissingParams(t *testing.T) {
	req, err := DecodeRequest([]byte(` {"method":"ping"} `))
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "ping" || req.Params != nil {
		t.Errorf("got %+v", req)
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	for _, in := range []string{
		`{"data":{}}`,
		`{"status":"maybe","data":{}}`,
		`{"status":1}`,
		`{"method":"ping","params":{}}`,
	} {
		_, err := DecodeResponse([]byte(in))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("DecodeResponse(%s) = %v, want DecodeError", in, err)
		}
	}
}

func TestNewRequestValidation(t *testing.T) {
	if _, err := NewRequest("", nil); err == nil {
		t.Error("empty method accepted")
	}
	if _, err := NewRequest("ping", make(chan int)); err == nil {
		t.Error("channel params accepted")
	}
	if _, err := NewRequest("ping", map[string]any{"n": 1, "f": 1.5}); err != nil {
		t.Errorf("numeric params rejected: %v", err)
	}
	if _, err := NewRequest("ping", map[string]any{"big": json.Number("1e400")}); err == nil {
		t.Error("number outside double range accepted")
	}
}

func TestNewRequestTypedParams(t *testing.T) {
	for _, tc := range []struct {
		name   string
		params any
		want   any
	}{
		{"typed slice", map[string]any{"tags": []string{"a", "b"}},
			map[string]any{"tags": []any{"a", "b"}}},
		{"typed map", map[string]int{"x": 1},
			map[string]any{"x": json.Number("1")}},
		{"struct", struct {
			Name string `json:"name"`
			IDs  []uint64
		}{"bodhi", []uint64{18446744073709551615}},
			map[string]any{"name": "bodhi", "IDs": []any{json.Number("18446744073709551615")}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req, err := NewRequest("store", tc.params)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, req.Params); diff != "" {
				t.Errorf("params (-want +got):\n%s", diff)
			}
			bs, err := Encode(req)
			if err != nil {
				t.Fatal(err)
			}
			got, err := DecodeRequest(bs)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(req, got); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	if _, err := Encode(&Request{}); err == nil {
		t.Error("empty method encoded")
	}
	if _, err := Encode(&Response{Status: "ok"}); err == nil {
		t.Error("bad status encoded")
	}
	if _, err := Encode("ping"); err == nil {
		t.Error("string encoded")
	}
}

func TestFailureMessage(t *testing.T) {
	msg, ok := Failure("Unknown method").Message()
	if !ok || msg != "Unknown method" {
		t.Errorf("got %q %v", msg, ok)
	}
	if _, ok := Success("x").Message(); ok {
		t.Error("string data has a message")
	}
}
