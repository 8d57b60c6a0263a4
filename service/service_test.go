// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/tamago-labs/bodhi-tree-ai/config"
	"github.com/tamago-labs/bodhi-tree-ai/dispatch"
	"github.com/tamago-labs/bodhi-tree-ai/enclave"
	"github.com/tamago-labs/bodhi-tree-ai/health"
	"github.com/tamago-labs/bodhi-tree-ai/protocol"
	"github.com/tamago-labs/bodhi-tree-ai/servicetest"
	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

func waitForReady(t *testing.T, controlAddr string, timeout time.Duration) {
	url := fmt.Sprintf("http://%v/health/ready", controlAddr)
	if err := servicetest.WaitFor200(timeout, url); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Transport = transport.KindTCP
	cfg.Port = uint32(servicetest.RandomPort(t))
	cfg.ControlListenAddr = fmt.Sprintf("127.0.0.1:%d", servicetest.RandomPort(t))
	cfg.Metrics.Sink = config.MetricsSinkPrometheus
	return cfg
}

func start(t *testing.T, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, cfg, dispatch.New()) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Start()=%v", err)
		}
	})
	waitForReady(t, cfg.ControlListenAddr, 10*time.Second)
}

func connector(cfg *config.Config) *enclave.Connector {
	return enclave.NewConnector(enclave.ConnectorOptions{
		Transport:      &transport.TCP{},
		Endpoint:       cfg.ConnectEndpoint(),
		InitialBackoff: 10 * time.Millisecond,
	})
}

func TestPingOverTCP(t *testing.T) {
	cfg := testConfig(t)
	start(t, cfg)

	req, err := protocol.NewRequest("ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := connector(cfg).Do(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(protocol.Success(map[string]any{"message": "pong"}), resp); diff != "" {
		t.Errorf("ping (-want +got):\n%s", diff)
	}

	resp, err = connector(cfg).Do(context.Background(), &protocol.Request{Method: "unknown_op", Params: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(protocol.Failure("Unknown method"), resp); diff != "" {
		t.Errorf("unknown_op (-want +got):\n%s", diff)
	}
}

func TestLengthPrefixedService(t *testing.T) {
	cfg := testConfig(t)
	cfg.Framing.Mode = transport.FramingLengthPrefixed
	start(t, cfg)

	c := enclave.NewConnector(enclave.ConnectorOptions{
		Transport: &transport.TCP{},
		Endpoint:  cfg.ConnectEndpoint(),
		Framer:    transport.LengthPrefixed{MaxSize: cfg.Framing.MaxMessageSize},
	})
	resp, err := c.Do(context.Background(), &protocol.Request{Method: "ping", Params: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if msg, _ := resp.Message(); msg != "pong" {
		t.Errorf("got %+v", resp)
	}
}

func TestControlEndpoints(t *testing.T) {
	cfg := testConfig(t)
	start(t, cfg)

	if _, err := connector(cfg).Do(context.Background(), &protocol.Request{Method: "ping", Params: map[string]any{}}); err != nil {
		t.Fatal(err)
	}

	base := "http://" + cfg.ControlListenAddr
	// the server counts a connection after it has replied
	if _, err := servicetest.RetryFun(5*time.Second, func() (string, error) {
		body, err := servicetest.Get(base + "/control/stats")
		if err == nil && !strings.Contains(body, `"Served":1`) {
			err = fmt.Errorf("stats=%s", body)
		}
		return body, err
	}); err != nil {
		t.Error(err)
	}

	body, err := servicetest.Get(base + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "bridge_dispatch_request") {
		t.Errorf("dispatch counter missing from /metrics:\n%s", body)
	}

	resp, err := http.PostForm(base+"/control/loglevel", url.Values{"level": []string{"error"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("loglevel status %v", resp.StatusCode)
	}
	if cfg.Log.Level.Level() != zapcore.ErrorLevel {
		t.Errorf("level=%v, want %v", cfg.Log.Level.Level(), zap.ErrorLevel)
	}
}

func TestBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	cfg := config.Default()
	cfg.Transport = transport.KindTCP
	cfg.Port = uint32(ln.Addr().(*net.TCPAddr).Port)

	err = Start(context.Background(), cfg, dispatch.New())
	var be *transport.BindError
	if !errors.As(err, &be) {
		t.Fatalf("Start()=%v, want BindError", err)
	}
}

func TestReadinessAfterImmediateServeFailure(t *testing.T) {
	ready := health.New("ready", errors.New("listener not started"))
	var g errgroup.Group
	serveErr := errors.New("accept: use of closed network connection")
	goServe(&g, ready, func() error { return serveErr })
	if err := g.Wait(); !errors.Is(err, serveErr) {
		t.Fatalf("Wait()=%v, want %v", err, serveErr)
	}
	if err := ready.Err(); !errors.Is(err, serveErr) {
		t.Errorf("ready=%v, want the serve error", err)
	}
}
