// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

func TestConfig(t *testing.T) {
	var yaml = `
log:
  level: info
transport: tcp
connect:
  initialBackoff: 1000ms
  ioTimeout: 2h
listener:
  maxConcurrent: 8
`
	conf, err := unmarshal([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	if conf.Log.Level.Level() != zap.InfoLevel {
		t.Errorf("conf.level=%v, want %v", conf.Log.Level.Level(), zap.InfoLevel)
	}
	if conf.Log.Encoding != "console" {
		t.Errorf("conf.encoding=%v, want %v", conf.Log.Encoding, "console")
	}
	if conf.Connect.InitialBackoff != time.Second {
		t.Errorf("conf.connect.initialBackoff=%v, want %v", conf.Connect.InitialBackoff, time.Second)
	}
	if conf.Connect.IOTimeout != 2*time.Hour {
		t.Errorf("conf.connect.ioTimeout=%v, want %v", conf.Connect.IOTimeout, time.Hour*2)
	}
	if conf.Connect.MaxAttempts != 5 {
		t.Errorf("conf.connect.maxAttempts=%v, want 5", conf.Connect.MaxAttempts)
	}
	if conf.Listener.MaxConcurrent != 8 {
		t.Errorf("conf.listener.maxConcurrent=%v, want 8", conf.Listener.MaxConcurrent)
	}
	if err := conf.validate(); err != nil {
		t.Error(err)
	}
}

func TestDefaultEndpoints(t *testing.T) {
	c := Default()
	c.Transport = transport.KindVsock
	if diff := cmp.Diff(transport.Endpoint{Kind: transport.KindVsock, CID: 3, Port: 5005}, c.ConnectEndpoint()); diff != "" {
		t.Errorf("vsock connect endpoint (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(transport.Endpoint{Kind: transport.KindVsock, CID: 0xFFFFFFFF, Port: 5005}, c.ListenEndpoint()); diff != "" {
		t.Errorf("vsock listen endpoint (-want +got):\n%s", diff)
	}
	c.Transport = transport.KindTCP
	want := transport.Endpoint{Kind: transport.KindTCP, Host: "127.0.0.1", Port: 5005}
	if diff := cmp.Diff(want, c.ConnectEndpoint()); diff != "" {
		t.Errorf("tcp connect endpoint (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, c.ListenEndpoint()); diff != "" {
		t.Errorf("tcp listen endpoint (-want +got):\n%s", diff)
	}
	if err := c.validate(); err != nil {
		t.Error(err)
	}
}

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	for _, tc := range []struct {
		name    string
		kind    transport.Kind
		env     map[string]string
		want    uint32
		wantErr bool
	}{
		{"vsock unset", transport.KindVsock, nil, DefaultPort, false},
		{"vsock set", transport.KindVsock, map[string]string{"VSOCK_PORT": "6000"}, 6000, false},
		{"vsock ignores PORT", transport.KindVsock, map[string]string{"PORT": "6000"}, DefaultPort, false},
		{"vsock invalid", transport.KindVsock, map[string]string{"VSOCK_PORT": "abc"}, 0, true},
		{"vsock negative", transport.KindVsock, map[string]string{"VSOCK_PORT": "-1"}, 0, true},
		{"tcp unset", transport.KindTCP, nil, DefaultPort, false},
		{"tcp set", transport.KindTCP, map[string]string{"PORT": "7000"}, 7000, false},
		{"tcp ignores VSOCK_PORT", transport.KindTCP, map[string]string{"VSOCK_PORT": "7000"}, DefaultPort, false},
		{"tcp invalid", transport.KindTCP, map[string]string{"PORT": "not-a-real-service-name"}, 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			c.Transport = tc.kind
			err := c.ApplyEnv(env(tc.env))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, port=%v", c.Port)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.Port != tc.want {
				t.Errorf("port=%v, want %v", c.Port, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"transport", func(c *Config) { c.Transport = "serial" }, "invalid transport"},
		{"attempts", func(c *Config) { c.Connect.MaxAttempts = 0 }, "MaxAttempts"},
		{"framing", func(c *Config) { c.Framing.Mode = "newline" }, "framing Mode"},
		{"buffer", func(c *Config) { c.Framing.BufferSize = 0 }, "BufferSize"},
		{"concurrency", func(c *Config) { c.Listener.Concurrency = "parallel" }, "Concurrency"},
		{"datadog", func(c *Config) { c.Metrics.Sink = MetricsSinkDatadog }, "datadogAgentHost"},
		{"tcp host", func(c *Config) { c.Transport = transport.KindTCP; c.TCP.Host = "" }, "tcp host"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.validate()
			if err == nil || !strings.Contains(err.Error(), tc.substr) {
				t.Errorf("got %v, want error containing %q", err, tc.substr)
			}
		})
	}
}

func TestListenerMode(t *testing.T) {
	l := ListenerConfig{}
	if got := l.Mode(transport.KindVsock); got != Sequential {
		t.Errorf("vsock mode %v", got)
	}
	if got := l.Mode(transport.KindTCP); got != Concurrent {
		t.Errorf("tcp mode %v", got)
	}
	l.Concurrency = Sequential
	if got := l.Mode(transport.KindTCP); got != Sequential {
		t.Errorf("explicit mode %v", got)
	}
}

func TestReadExpandsEnv(t *testing.T) {
	t.Setenv("BRIDGE_TEST_HOST", "localhost")
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("transport: tcp\ntcp:\n  host: ${BRIDGE_TEST_HOST}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.TCP.Host != "localhost" {
		t.Errorf("host=%q", c.TCP.Host)
	}
}
