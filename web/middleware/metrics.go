// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"net/http"
	"strconv"

	"github.com/hashicorp/go-metrics"
)

var responseCounterName = []string{"http", "response"}

// Instrument wraps an http.Handler and updates metrics with the http response
func Instrument(inner http.Handler) http.Handler {
	return InstrumentWith(globalCounter{}, inner)
}

type counter interface {
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
}

type globalCounter struct{}

func (globalCounter) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	metrics.IncrCounterWithLabels(key, val, labels)
}

// InstrumentWith is Instrument reporting to the provided metrics writer
func InstrumentWith(m counter, inner http.Handler) http.Handler {
	return &handler{inner: inner, metrics: m}
}

type handler struct {
	inner   http.Handler
	metrics counter
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ww := &writerWrapper{w: w}
	h.inner.ServeHTTP(ww, r)
	if !ww.recorded {
		// handlers that write nothing respond 200
		ww.statusCode = http.StatusOK
	}
	h.metrics.IncrCounterWithLabels(responseCounterName, 1, []metrics.Label{
		{Name: "method", Value: r.Method},
		{Name: "endpoint", Value: r.URL.Path},
		{Name: "status", Value: strconv.Itoa(ww.statusCode)},
	})
}

// When a response is written, record the status code so it can be instrumented later
type writerWrapper struct {
	w          http.ResponseWriter
	statusCode int
	recorded   bool
}

var _ http.ResponseWriter = (*writerWrapper)(nil)

func (ww *writerWrapper) Header() http.Header {
	return ww.w.Header()
}

func (ww *writerWrapper) Write(b []byte) (int, error) {
	if !ww.recorded {
		ww.recorded = true
		ww.statusCode = http.StatusOK
	}
	return ww.w.Write(b)
}

func (ww *writerWrapper) WriteHeader(statusCode int) {
	if !ww.recorded {
		ww.recorded = true
		ww.statusCode = statusCode
	}
	ww.w.WriteHeader(statusCode)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (ww *writerWrapper) Unwrap() http.ResponseWriter {
	return ww.w
}
