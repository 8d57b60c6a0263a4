// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package health serves liveness and readiness state over HTTP.
package health

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
)

// Health wraps an error (nil means "healthy"), and provides HTTP handling
// logic to serve that error.
type Health struct {
	name string
	mu   sync.Mutex
	err  error
}

// New creates a new health object, with initial health set based on the
// 'initial' error (nil==healthy). The name is used when logging transitions.
func New(name string, initial error) *Health {
	return &Health{name: name, err: initial}
}

// Set sets the underlying error for this Health object; err=nil means "OK"
func (h *Health) Set(err error) {
	h.mu.Lock()
	was := h.err
	h.err = err
	h.mu.Unlock()
	switch {
	case was != nil && err == nil:
		logger.Infow("healthy", "check", h.name)
	case was == nil && err != nil:
		logger.Warnw("unhealthy", "check", h.name, "err", err)
	}
}

// Err returns the current error, nil when healthy.
func (h *Health) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// ServeHTTP implements http.Handler.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.Err()
	if err == nil {
		fmt.Fprintf(w, "ok")
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "%s error: %v", h.name, err)
}
