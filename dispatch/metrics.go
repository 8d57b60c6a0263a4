// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package dispatch

import (
	metrics "github.com/hashicorp/go-metrics"

	"github.com/tamago-labs/bodhi-tree-ai/protocol"
)

type metricsWriter interface {
	IncrCounterWithLabels(key []string, val float32, labels []metrics.Label)
}

var requestCounterName = []string{"dispatch", "request"}

// methodUnknown labels requests for unregistered methods, so arbitrary
// method names from the wire never become label values.
const methodUnknown = "unknown"

// requestMetrics counts dispatched requests by method and outcome
type requestMetrics struct {
	writer metricsWriter
}

// globalWriter writes to whichever go-metrics global is current at the time
type globalWriter struct{}

func (globalWriter) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	metrics.IncrCounterWithLabels(key, val, labels)
}

func newRequestMetrics() *requestMetrics {
	return &requestMetrics{writer: globalWriter{}}
}

func (m *requestMetrics) request(method string, status protocol.Status) {
	m.writer.IncrCounterWithLabels(requestCounterName, 1, []metrics.Label{
		{Name: "method", Value: method},
		{Name: "status", Value: string(status)},
	})
}
