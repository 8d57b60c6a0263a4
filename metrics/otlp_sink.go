// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	metricSDK "go.opentelemetry.io/otel/sdk/metric"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
)

// OTLPSink forwards go-metrics updates to an OpenTelemetry meter.
type OTLPSink struct {
	meter         metric.Meter
	meterProvider *metricSDK.MeterProvider

	mu         sync.Mutex
	gauges     map[string]metric.Float64Gauge
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

var _ metrics.ShutdownSink = (*OTLPSink)(nil)

// NewOTLPSink initializes the Open Telemetry metrics SDK, exporting over OTLP
// HTTP as configured by the standard OTEL_EXPORTER_OTLP_* environment.
func NewOTLPSink(ctx context.Context) (*OTLPSink, error) {
	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating new otlp meter exporter: %w", err)
	}
	meterProvider := metricSDK.NewMeterProvider(metricSDK.WithReader(metricSDK.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(meterProvider)
	return newOTLPSink(meterProvider), nil
}

func newOTLPSink(meterProvider *metricSDK.MeterProvider) *OTLPSink {
	return &OTLPSink{
		meter:         meterProvider.Meter(metrics.Default().ServiceName),
		meterProvider: meterProvider,
		gauges:        make(map[string]metric.Float64Gauge),
		counters:      make(map[string]metric.Float64Counter),
		histograms:    make(map[string]metric.Float64Histogram),
	}
}

func (s *OTLPSink) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	_ = s.meterProvider.Shutdown(ctx)
}

// instrument returns the cached instrument for key, creating it with mk.
func instrument[T any](s *OTLPSink, cache map[string]T, key []string, mk func(string) (T, error)) (T, bool) {
	n := name(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := cache[n]; ok {
		return inst, true
	}
	inst, err := mk(n)
	if err != nil {
		logger.Errorf("failed to record %s: %v", n, err)
		return inst, false
	}
	cache[n] = inst
	return inst, true
}

func (s *OTLPSink) SetGauge(key []string, val float32) {
	s.SetGaugeWithLabels(key, val, nil)
}

func (s *OTLPSink) SetGaugeWithLabels(key []string, val float32, labels []metrics.Label) {
	g, ok := instrument(s, s.gauges, key, func(n string) (metric.Float64Gauge, error) {
		return s.meter.Float64Gauge(n)
	})
	if ok {
		g.Record(context.Background(), float64(val), metric.WithAttributes(labelsToAttributes(labels)...))
	}
}

// EmitKey is not implemented
func (s *OTLPSink) EmitKey(_ []string, _ float32) {
	logger.Errorf("EmitKey is not implemented")
}

func (s *OTLPSink) IncrCounter(key []string, val float32) {
	s.IncrCounterWithLabels(key, val, nil)
}

func (s *OTLPSink) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	c, ok := instrument(s, s.counters, key, func(n string) (metric.Float64Counter, error) {
		return s.meter.Float64Counter(n)
	})
	if ok {
		c.Add(context.Background(), float64(val), metric.WithAttributes(labelsToAttributes(labels)...))
	}
}

func (s *OTLPSink) AddSample(key []string, val float32) {
	s.AddSampleWithLabels(key, val, nil)
}

func (s *OTLPSink) AddSampleWithLabels(key []string, val float32, labels []metrics.Label) {
	h, ok := instrument(s, s.histograms, key, func(n string) (metric.Float64Histogram, error) {
		return s.meter.Float64Histogram(n)
	})
	if ok {
		h.Record(context.Background(), float64(val), metric.WithAttributes(labelsToAttributes(labels)...))
	}
}

func labelsToAttributes(labels []metrics.Label) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, label := range labels {
		attrs = append(attrs, attribute.String(label.Name, label.Value))
	}

	return attrs
}

func name(key []string) string {
	return strings.Join(key, ".")
}
