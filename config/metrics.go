// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "fmt"

type MetricsSink string

const (
	MetricsSinkNone       MetricsSink = "none"
	MetricsSinkInmem      MetricsSink = "inmem"
	MetricsSinkPrometheus MetricsSink = "prometheus"
	MetricsSinkDatadog    MetricsSink = "datadog"
	MetricsSinkOTLP       MetricsSink = "otlp"
)

type MetricsConfig struct {
	// Where go-metrics counters are sent
	Sink MetricsSink `yaml:"sink"`
	// Address to reach a datadog compatible statsd
	DatadogAgentHost string `yaml:"datadogAgentHost"`
}

func (m *MetricsConfig) validate() []string {
	switch m.Sink {
	case "", MetricsSinkNone, MetricsSinkInmem, MetricsSinkPrometheus, MetricsSinkOTLP:
		return nil
	case MetricsSinkDatadog:
		if m.DatadogAgentHost == "" {
			return []string{"must provide datadogAgentHost for datadog sink"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("invalid metrics sink: %q", m.Sink)}
	}
}
