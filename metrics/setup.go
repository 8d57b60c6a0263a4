// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics configures the global go-metrics sink.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-metrics/datadog"
	gometricsprom "github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamago-labs/bodhi-tree-ai/config"
	"github.com/tamago-labs/bodhi-tree-ai/logger"
)

// Setup is the configured global sink.
type Setup struct {
	// Handler serves the sink's current values, nil if the sink is push based
	Handler  http.Handler
	shutdown func()
}

// Shutdown flushes and stops the sink.
func (s *Setup) Shutdown() {
	if s.shutdown != nil {
		s.shutdown()
	}
}

// Init installs the configured sink as the go-metrics global.
func Init(ctx context.Context, cfg config.MetricsConfig, serviceName string) (*Setup, error) {
	var (
		sink  metrics.MetricSink
		setup = &Setup{}
	)
	switch cfg.Sink {
	case "", config.MetricsSinkNone:
		sink = &metrics.BlackholeSink{}
	case config.MetricsSinkInmem:
		inm := metrics.NewInmemSink(10*time.Second, time.Minute)
		sink = inm
		setup.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			summary, err := inm.DisplayMetrics(w, r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(summary)
		})
	case config.MetricsSinkPrometheus:
		reg := prometheus.NewRegistry()
		ps, err := gometricsprom.NewPrometheusSinkFrom(gometricsprom.PrometheusOpts{
			Expiration: time.Minute,
			Registerer: reg,
		})
		if err != nil {
			return nil, fmt.Errorf("creating prometheus sink: %w", err)
		}
		sink = ps
		setup.Handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case config.MetricsSinkDatadog:
		logger.Infof("initializing datadog at %v", cfg.DatadogAgentHost)
		ds, err := datadog.NewDogStatsdSink(cfg.DatadogAgentHost, "")
		if err != nil {
			return nil, fmt.Errorf("error initializing statsd client: %w", err)
		}
		sink = ds
		setup.shutdown = ds.Shutdown
	case config.MetricsSinkOTLP:
		otlp, err := NewOTLPSink(ctx)
		if err != nil {
			return nil, err
		}
		sink = otlp
		setup.shutdown = otlp.Shutdown
	default:
		return nil, fmt.Errorf("unknown metrics sink %q", cfg.Sink)
	}

	// disable hostname tagging, this can be provided by the downstream sink
	mcfg := metrics.DefaultConfig(serviceName)
	mcfg.EnableHostname = false
	mcfg.EnableHostnameLabel = false
	mcfg.EnableRuntimeMetrics = false
	if _, err := metrics.NewGlobal(mcfg, sink); err != nil {
		setup.Shutdown()
		return nil, fmt.Errorf("error initializing metrics : %w", err)
	}
	logger.Infow("initialized metrics", "sink", cfg.Sink)
	return setup, nil
}
