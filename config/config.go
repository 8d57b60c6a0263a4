// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

const (
	// DefaultPort is used by both transports when no port is configured.
	DefaultPort = 5005

	// VsockPortEnv overrides the port of the vsock transport.
	VsockPortEnv = "VSOCK_PORT"
	// TCPPortEnv overrides the port of the tcp transport.
	TCPPortEnv = "PORT"
)

type Config struct {
	// See zap.Config
	Log *zap.Config `yaml:"log"`
	// Transport between enclave and parent, "vsock" or "tcp". Defaults
	// to tcp when built with the localtest tag, vsock otherwise.
	Transport transport.Kind `yaml:"transport"`
	// Port the parent listens on and the enclave connects to
	Port uint32 `yaml:"port"`
	// vsock context IDs
	Vsock VsockConfig `yaml:"vsock"`
	// tcp addressing, used by the tcp transport
	TCP TCPConfig `yaml:"tcp"`
	// Enclave side connection establishment
	Connect ConnectConfig `yaml:"connect"`
	// Message framing, must match on both sides
	Framing FramingConfig `yaml:"framing"`
	// Parent side connection handling
	Listener ListenerConfig `yaml:"listener"`
	// Address for http control server to listen on. Empty disables it.
	ControlListenAddr string `yaml:"controlListenAddr"`
	// Metrics sink configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

type VsockConfig struct {
	// CID the enclave dials, the parent instance is always 3
	ConnectCID uint32 `yaml:"connectCID"`
	// CID the parent binds, 4294967295 accepts any
	ListenCID uint32 `yaml:"listenCID"`
}

type TCPConfig struct {
	// Host for both connecting and listening, normally loopback
	Host string `yaml:"host"`
}

func (t *TCPConfig) validate() []string {
	if t.Host == "" {
		return []string{"must provide tcp host"}
	}
	return nil
}

// validate returns a list of validation errors, or empty if there are no errors.
type validator interface{ validate() []string }

func (c *Config) validate() error {
	var errs []string
	switch c.Transport {
	case transport.KindVsock:
	case transport.KindTCP:
		errs = append(errs, c.TCP.validate()...)
	default:
		errs = append(errs, fmt.Sprintf("invalid transport %q", c.Transport))
	}
	validators := []validator{&c.Connect, &c.Framing, &c.Listener, &c.Metrics}
	for _, validator := range validators {
		errs = append(errs, validator.validate()...)
	}
	if len(errs) != 0 {
		return fmt.Errorf("invalid config: %v", strings.Join(errs, ","))
	}
	return nil
}

// Read parses the yaml file at the provided path into a Config
func Read(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	withenv := []byte(os.ExpandEnv(string(bs)))
	c, err := unmarshal(withenv)
	if err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the config at path, or uses Default if path is empty, then applies
// port overrides from the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Read(path); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(bs []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides Port from the environment variable belonging to the
// configured transport: VSOCK_PORT must be an unsigned integer, PORT may be a
// number or a tcp service name.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	switch c.Transport {
	case transport.KindVsock:
		v, ok := lookup(VsockPortEnv)
		if !ok {
			return nil
		}
		port, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", VsockPortEnv, v, err)
		}
		c.Port = uint32(port)
	case transport.KindTCP:
		v, ok := lookup(TCPPortEnv)
		if !ok {
			return nil
		}
		port, err := net.LookupPort("tcp", strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", TCPPortEnv, v, err)
		}
		c.Port = uint32(port)
	}
	return nil
}

// ConnectEndpoint is the address the enclave dials.
func (c *Config) ConnectEndpoint() transport.Endpoint {
	if c.Transport == transport.KindTCP {
		return transport.Endpoint{Kind: transport.KindTCP, Host: c.TCP.Host, Port: c.Port}
	}
	return transport.Endpoint{Kind: transport.KindVsock, CID: c.Vsock.ConnectCID, Port: c.Port}
}

// ListenEndpoint is the address the parent binds.
func (c *Config) ListenEndpoint() transport.Endpoint {
	if c.Transport == transport.KindTCP {
		return transport.Endpoint{Kind: transport.KindTCP, Host: c.TCP.Host, Port: c.Port}
	}
	return transport.Endpoint{Kind: transport.KindVsock, CID: c.Vsock.ListenCID, Port: c.Port}
}

// Default provides reasonable default parameters that may be overridden by a config file
func Default() *Config {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:       true,
		Encoding:          "console",
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	return &Config{
		Log:       &config,
		Transport: defaultTransport,
		Port:      DefaultPort,
		Vsock: VsockConfig{
			ConnectCID: transport.CIDParent,
			ListenCID:  transport.CIDAny,
		},
		TCP: TCPConfig{
			Host: "127.0.0.1",
		},
		Connect: ConnectConfig{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
		},
		Framing: FramingConfig{
			Mode:           transport.FramingSingleRead,
			BufferSize:     transport.DefaultBufferSize,
			MaxMessageSize: transport.DefaultMaxMessageSize,
		},
		Metrics: MetricsConfig{
			Sink: MetricsSinkNone,
		},
	}
}
