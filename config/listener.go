// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"time"

	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

type Concurrency string

const (
	Sequential Concurrency = "sequential"
	Concurrent Concurrency = "concurrent"
)

type ListenerConfig struct {
	// "sequential" or "concurrent". Empty picks sequential for vsock and
	// concurrent for tcp.
	Concurrency Concurrency `yaml:"concurrency"`
	// upper bound on in-flight connections in concurrent mode, 0 is unbounded
	MaxConcurrent int `yaml:"maxConcurrent"`
	// deadline for each accepted connection's exchange, 0 disables
	IOTimeout time.Duration `yaml:"ioTimeout"`
}

func (l *ListenerConfig) validate() []string {
	var errs []string
	switch l.Concurrency {
	case "", Sequential, Concurrent:
	default:
		errs = append(errs, fmt.Sprintf("invalid listener Concurrency: %q", l.Concurrency))
	}
	if l.MaxConcurrent < 0 {
		errs = append(errs, fmt.Sprintf("invalid listener MaxConcurrent: %v", l.MaxConcurrent))
	}
	if l.IOTimeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid listener IOTimeout: %v", l.IOTimeout))
	}
	return errs
}

// Mode resolves the serving mode for the given transport.
func (l *ListenerConfig) Mode(kind transport.Kind) Concurrency {
	if l.Concurrency != "" {
		return l.Concurrency
	}
	if kind == transport.KindTCP {
		return Concurrent
	}
	return Sequential
}
