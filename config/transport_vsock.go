// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !localtest

package config

import "github.com/tamago-labs/bodhi-tree-ai/transport"

const defaultTransport = transport.KindVsock
