// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DecodeError reports bytes that are not a well formed message.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode renders a *Request or *Response as compact JSON.
func Encode(v any) ([]byte, error) {
	switch m := v.(type) {
	case *Request:
		if m.Method == "" {
			return nil, errors.New("encode: request method must not be empty")
		}
	case *Response:
		if !m.Status.valid() {
			return nil, fmt.Errorf("encode: invalid status %q", m.Status)
		}
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", v)
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return bs, nil
}

// DecodeRequest parses one Request. The method must be present and non-empty.
func DecodeRequest(bs []byte) (*Request, error) {
	var wire struct {
		Method *string `json:"method"`
		Params any     `json:"params"`
	}
	if err := decode(bs, &wire); err != nil {
		return nil, err
	}
	if wire.Method == nil {
		return nil, &DecodeError{Reason: "missing method"}
	}
	if *wire.Method == "" {
		return nil, &DecodeError{Reason: "empty method"}
	}
	return &Request{Method: *wire.Method, Params: wire.Params}, nil
}

// DecodeResponse parses one Response. The status must be "success" or "error".
func DecodeResponse(bs []byte) (*Response, error) {
	var wire struct {
		Status *Status `json:"status"`
		Data   any     `json:"data"`
	}
	if err := decode(bs, &wire); err != nil {
		return nil, err
	}
	if wire.Status == nil {
		return nil, &DecodeError{Reason: "missing status"}
	}
	if !wire.Status.valid() {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid status %q", *wire.Status)}
	}
	return &Response{Status: *wire.Status, Data: wire.Data}, nil
}

// decode unmarshals exactly one JSON object from bs into v, keeping numbers as
// json.Number so integers survive unchanged.
func decode(bs []byte, v any) error {
	if !utf8.Valid(bs) {
		return &DecodeError{Reason: "invalid utf-8"}
	}
	trimmed := bytes.TrimSpace(bs)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &DecodeError{Reason: "not a json object"}
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Reason: "invalid json", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &DecodeError{Reason: "trailing data after message"}
	}
	return nil
}
