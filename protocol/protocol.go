// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package protocol defines the request and response messages exchanged between
// an enclave and its parent, and their JSON text encoding.
//
// A request looks like
//
//	{"method":"ping","params":{}}
//
// and a response like
//
//	{"status":"success","data":{"message":"pong"}}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Status is the outcome carried by a Response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

func (s Status) valid() bool {
	return s == StatusSuccess || s == StatusError
}

// Request asks the parent to perform Method with Params.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Response answers exactly one Request.
type Response struct {
	Status Status `json:"status"`
	Data   any    `json:"data"`
}

// NewRequest builds a Request. Params may be any value that encodes as JSON;
// it is stored in decoded form (map[string]any, []any, json.Number, string,
// bool or nil) so a Request compares equal to its decoded wire copy. A nil
// params becomes an empty object.
func NewRequest(method string, params any) (*Request, error) {
	if method == "" {
		return nil, errors.New("request method must not be empty")
	}
	if params == nil {
		params = map[string]any{}
	}
	v, err := normalize(params)
	if err != nil {
		return nil, fmt.Errorf("unsupported params for %q: %w", method, err)
	}
	// numbers must be representable as doubles
	if _, err := structpb.NewValue(v); err != nil {
		return nil, fmt.Errorf("unsupported params for %q: %w", method, err)
	}
	return &Request{Method: method, Params: v}, nil
}

func normalize(params any) (any, error) {
	bs, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(bs))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Success returns a successful Response carrying data.
func Success(data any) *Response {
	return &Response{Status: StatusSuccess, Data: data}
}

// Failure returns an error Response whose data is {"message": message}.
func Failure(message string) *Response {
	return &Response{Status: StatusError, Data: map[string]any{"message": message}}
}

// Message returns data.message when the response data is an object with a
// string message field.
func (r *Response) Message() (string, bool) {
	m, ok := r.Data.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m["message"].(string)
	return s, ok
}
