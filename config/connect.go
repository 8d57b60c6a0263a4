// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"time"
)

type ConnectConfig struct {
	// number of dial attempts before the enclave gives up
	MaxAttempts int `yaml:"maxAttempts"`
	// sleep before the first retry, doubling before each subsequent one
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	// deadline for the request/response exchange once connected, 0 disables
	IOTimeout time.Duration `yaml:"ioTimeout"`
}

func (c *ConnectConfig) validate() []string {
	var errs []string
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("invalid connect MaxAttempts: %v", c.MaxAttempts))
	}
	if c.InitialBackoff < 0 {
		errs = append(errs, fmt.Sprintf("invalid connect InitialBackoff: %v", c.InitialBackoff))
	}
	if c.IOTimeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid connect IOTimeout: %v", c.IOTimeout))
	}
	return errs
}
