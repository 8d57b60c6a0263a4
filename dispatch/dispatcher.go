// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package dispatch maps request methods to handlers on the parent side.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/protocol"
)

const (
	// MethodPing is the liveness method every Dispatcher answers.
	MethodPing = "ping"

	unknownMethodMessage = "Unknown method"
	internalErrorMessage = "internal error"
)

// HandlerFunc handles the params of one request. A returned error is sent to
// the caller as an error response carrying err.Error() as its message.
type HandlerFunc func(ctx context.Context, params any) (any, error)

// Dispatcher routes a Request to the handler registered for its method. The
// zero value is not usable, create one with New.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	metrics  *requestMetrics
}

// New returns a Dispatcher that answers "ping".
func New() *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		metrics:  newRequestMetrics(),
	}
	d.Register(MethodPing, ping)
	return d
}

func ping(context.Context, any) (any, error) {
	return map[string]any{"message": "pong"}, nil
}

// Register installs h for method, replacing any existing handler.
func (d *Dispatcher) Register(method string, h HandlerFunc) {
	if method == "" || h == nil {
		panic(fmt.Sprintf("invalid registration for method %q", method))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// Methods returns the number of registered methods.
func (d *Dispatcher) Methods() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// Dispatch produces exactly one Response for req. It never fails: an
// unregistered method, a handler error and a handler panic all become error
// responses.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	d.mu.RLock()
	h, ok := d.handlers[req.Method]
	d.mu.RUnlock()
	if !ok {
		d.metrics.request(methodUnknown, protocol.StatusError)
		return protocol.Failure(unknownMethodMessage)
	}
	resp := call(ctx, req, h)
	d.metrics.request(req.Method, resp.Status)
	return resp
}

func call(ctx context.Context, req *protocol.Request, h HandlerFunc) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("handler panicked", "method", req.Method, "panic", r, "stack", string(debug.Stack()))
			resp = protocol.Failure(internalErrorMessage)
		}
	}()
	data, err := h(ctx, req.Params)
	if err != nil {
		logger.Debugw("handler failed", "method", req.Method, "err", err)
		return protocol.Failure(err.Error())
	}
	return protocol.Success(data)
}
