// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"

	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

type FramingConfig struct {
	// "single-read" or "length-prefixed"
	Mode transport.FramingMode `yaml:"mode"`
	// read buffer for single-read framing, also the largest message it can carry
	BufferSize int `yaml:"bufferSize"`
	// largest frame accepted with length-prefixed framing
	MaxMessageSize int `yaml:"maxMessageSize"`
}

func (f *FramingConfig) validate() []string {
	var errs []string
	switch f.Mode {
	case transport.FramingSingleRead:
		if f.BufferSize < 1 {
			errs = append(errs, fmt.Sprintf("invalid framing BufferSize: %v", f.BufferSize))
		}
	case transport.FramingLengthPrefixed:
		if f.MaxMessageSize < 1 {
			errs = append(errs, fmt.Sprintf("invalid framing MaxMessageSize: %v", f.MaxMessageSize))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid framing Mode: %q", f.Mode))
	}
	return errs
}

// Framer builds the configured transport.Framer.
func (f *FramingConfig) Framer() (transport.Framer, error) {
	return transport.NewFramer(f.Mode, f.BufferSize, f.MaxMessageSize)
}
