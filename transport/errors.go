// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMessageTooLarge is returned when an encoded message does not fit the framer.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrEmptyMessage is returned when a peer sends no bytes before closing.
	ErrEmptyMessage = errors.New("empty message")
)

// ConnectionError reports that every attempt to reach a peer failed.
type ConnectionError struct {
	Endpoint Endpoint
	Attempts int
	Err      error // the last attempt's failure
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %v after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BindError reports that a listener could not be bound. It is never retried.
type BindError struct {
	Endpoint Endpoint
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %v: %v", e.Endpoint, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// AcceptError reports a single failed accept call.
type AcceptError struct {
	Err error
}

func (e *AcceptError) Error() string { return fmt.Sprintf("accept: %v", e.Err) }

func (e *AcceptError) Unwrap() error { return e.Err }

// TransferError reports a send or receive failure on an established connection.
type TransferError struct {
	Op  string // "send" or "recv"
	Err error
}

func (e *TransferError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransferError) Unwrap() error { return e.Err }
