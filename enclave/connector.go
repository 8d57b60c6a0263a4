// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package enclave is the enclave side of the bridge: it connects to the parent,
// sends one request and reads back one response.
package enclave

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/protocol"
	"github.com/tamago-labs/bodhi-tree-ai/transport"
	"github.com/tamago-labs/bodhi-tree-ai/util"
)

var (
	connectAttemptCounterName = []string{"enclave", "connect", "attempt"}
	connectFailureCounterName = []string{"enclave", "connect", "failure"}
	exchangeCounterName       = []string{"enclave", "exchange"}
)

const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = time.Second
)

type ConnectorOptions struct {
	Transport transport.Transport
	Endpoint  transport.Endpoint
	// Framer defaults to single-read framing with an 8192 byte buffer
	Framer transport.Framer
	// MaxAttempts bounds the number of dials, defaults to 5
	MaxAttempts int
	// InitialBackoff is the sleep before the first retry, doubling before
	// each later one. Defaults to one second.
	InitialBackoff time.Duration
	// IOTimeout, if positive, bounds the exchange after connecting
	IOTimeout time.Duration
	// Sleeper defaults to util.RealSleeper
	Sleeper util.Sleeper
}

// Connector reaches the parent and performs request/response exchanges, one
// fresh connection per exchange.
type Connector struct {
	opts ConnectorOptions
}

func NewConnector(opts ConnectorOptions) *Connector {
	if opts.Framer == nil {
		opts.Framer = transport.SingleRead{BufferSize: transport.DefaultBufferSize}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.Sleeper == nil {
		opts.Sleeper = util.RealSleeper
	}
	return &Connector{opts: opts}
}

// Establish dials the endpoint, retrying failed dials with exponential backoff.
// After MaxAttempts failures it returns a *transport.ConnectionError wrapping
// the last failure; it does not sleep after the final attempt.
func (c *Connector) Establish(ctx context.Context) (net.Conn, error) {
	ep := c.opts.Endpoint
	conn, attempts, err := util.RetryAttempts(ctx, c.opts.MaxAttempts, c.opts.InitialBackoff, c.opts.Sleeper,
		func(attempt int) (net.Conn, error) {
			metrics.IncrCounter(connectAttemptCounterName, 1)
			logger.Debugw("connecting to parent", "endpoint", ep, "attempt", attempt)
			conn, err := c.opts.Transport.Dial(ctx, ep)
			if err != nil {
				if conn != nil {
					conn.Close()
				}
				metrics.IncrCounter(connectFailureCounterName, 1)
				logger.Warnw("connection attempt failed", "endpoint", ep, "attempt", attempt,
					"maxAttempts", c.opts.MaxAttempts, "err", err)
				return nil, err
			}
			return conn, nil
		})
	if err != nil {
		return nil, &transport.ConnectionError{Endpoint: ep, Attempts: attempts, Err: err}
	}
	logger.Infow("connected to parent", "endpoint", ep, "attempts", attempts)
	return conn, nil
}

// Do performs one exchange: connect, send req, read and decode the response.
// The connection is closed before Do returns.
func (c *Connector) Do(ctx context.Context, req *protocol.Request) (_ *protocol.Response, returnedErr error) {
	defer func() {
		metrics.IncrCounterWithLabels(exchangeCounterName, 1, []metrics.Label{
			{Name: "success", Value: strconv.FormatBool(returnedErr == nil)}})
	}()
	bs, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}
	conn, err := c.Establish(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if c.opts.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.opts.IOTimeout)); err != nil {
			return nil, &transport.TransferError{Op: "send", Err: fmt.Errorf("setting deadline: %w", err)}
		}
	}
	// a blocked read or write is abandoned when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := c.opts.Framer.WriteMessage(conn, bs); err != nil {
		return nil, ctxErr(ctx, err)
	}
	respBytes, err := c.opts.Framer.ReadMessage(conn)
	if err != nil {
		return nil, ctxErr(ctx, err)
	}
	resp, err := protocol.DecodeResponse(respBytes)
	if err != nil {
		return nil, err
	}
	logger.Debugw("received response", "method", req.Method, "status", resp.Status)
	return resp, nil
}

// ctxErr reports ctx's error in place of the deadline error it caused.
func ctxErr(ctx context.Context, err error) error {
	var ne net.Error
	if ctx.Err() != nil && errors.As(err, &ne) && ne.Timeout() {
		return &transport.TransferError{Op: "exchange", Err: ctx.Err()}
	}
	return err
}
