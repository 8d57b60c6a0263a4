// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package handlers contains the control-plane HTTP handlers of the parent.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/protocol"
)

// Dispatcher answers a decoded request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response
}

// NewControl returns a handler that takes HTTP PUT requests with a JSON
// [protocol.Request], dispatches it locally and returns the JSON response. It
// lets an operator exercise the dispatcher without an enclave.
func NewControl(d Dispatcher) http.Handler {
	return &controlHandler{dispatcher: d}
}

type controlHandler struct {
	dispatcher Dispatcher
}

func (c *controlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		http.Error(w, fmt.Sprintf("invalid content type %v: %v", err, mediaType), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	req, err := protocol.DecodeRequest(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid request : %v", err), http.StatusBadRequest)
		return
	}

	out, err := protocol.Encode(c.dispatcher.Dispatch(r.Context(), req))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(out); err != nil {
		logger.Warnw("error writing control response", "err", err)
	}
}

// NewStats returns a handler serving the result of stats as JSON on GET.
func NewStats[T any](stats func() T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats()); err != nil {
			logger.Warnw("error writing stats response", "err", err)
		}
	})
}
