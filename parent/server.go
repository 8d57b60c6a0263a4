// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package parent is the parent side of the bridge: it accepts connections from
// the enclave and answers one request per connection.
package parent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	metrics "github.com/hashicorp/go-metrics"
	"golang.org/x/sync/errgroup"

	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/protocol"
	"github.com/tamago-labs/bodhi-tree-ai/transport"
	"github.com/tamago-labs/bodhi-tree-ai/util"
)

// Dispatcher produces the response for a decoded request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response
}

type ServerOptions struct {
	// Framer defaults to single-read framing with an 8192 byte buffer
	Framer transport.Framer
	// Concurrent serves each connection on its own goroutine. Otherwise a
	// connection is fully handled before the next one is accepted.
	Concurrent bool
	// MaxConcurrent bounds in-flight connections when Concurrent is set, 0 is
	// unbounded. At the bound, accepting waits for a handler to finish.
	MaxConcurrent int
	// IOTimeout, if positive, is the deadline for each connection's exchange
	IOTimeout time.Duration
}

// Stats counts connection outcomes since the server was created.
type Stats struct {
	Served       uint64
	Failed       uint64
	AcceptErrors uint64
}

// Server accepts connections and dispatches the single request each carries.
type Server struct {
	ctx        context.Context
	opts       ServerOptions
	dispatcher Dispatcher

	served       atomic.Uint64
	failed       atomic.Uint64
	acceptErrors atomic.Uint64
}

var (
	connectCounter     = []string{"parent", "connection", "accept"}
	acceptErrorCounter = []string{"parent", "connection", "acceptError"}
	servedCounter      = []string{"parent", "connection", "served"}
	failureCounter     = []string{"parent", "connection", "failure"}
	activeGauge        = []string{"parent", "connection", "active"}
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// NewServer creates a server which must be started with Serve. The server
// stops when ctx is cancelled.
func NewServer(ctx context.Context, opts ServerOptions, d Dispatcher) *Server {
	if opts.Framer == nil {
		opts.Framer = transport.SingleRead{BufferSize: transport.DefaultBufferSize}
	}
	return &Server{ctx: ctx, opts: opts, dispatcher: d}
}

func (s *Server) Stats() Stats {
	return Stats{
		Served:       s.served.Load(),
		Failed:       s.failed.Load(),
		AcceptErrors: s.acceptErrors.Load(),
	}
}

// Serve accepts connections on ln until the server's context is cancelled.
//
// Failed accepts are logged and retried after a short backoff. Serve takes
// ownership of calling Close on the provided net.Listener, and waits for
// in-flight connections before returning.
func (s *Server) Serve(ln net.Listener) error {
	stop := context.AfterFunc(s.ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	var eg errgroup.Group
	if s.opts.Concurrent && s.opts.MaxConcurrent > 0 {
		eg.SetLimit(s.opts.MaxConcurrent)
	}
	var active atomic.Int64

	logger.Infow("serving", "addr", ln.Addr(), "concurrent", s.opts.Concurrent)
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				eg.Wait()
				return s.ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				eg.Wait()
				return err
			}
			s.acceptErrors.Add(1)
			metrics.IncrCounter(acceptErrorCounter, 1)
			backoff = util.Clamp(backoff*2, minAcceptBackoff, maxAcceptBackoff)
			logger.Warnw("accept failed", "err", &transport.AcceptError{Err: err}, "retryIn", backoff)
			// a cancelled sleep is noticed by the next Accept
			util.RealSleeper.Sleep(s.ctx, backoff)
			continue
		}
		backoff = 0
		metrics.IncrCounter(connectCounter, 1)

		if !s.opts.Concurrent {
			s.handleConnection(conn)
			continue
		}
		metrics.SetGauge(activeGauge, float32(active.Add(1)))
		eg.Go(func() error {
			defer func() { metrics.SetGauge(activeGauge, float32(active.Add(-1))) }()
			s.handleConnection(conn)
			return nil
		})
	}
}

// handleConnection serves one connection and records its outcome. Failures
// never propagate beyond the connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	// unblock reads and writes on shutdown
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	log := logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr())
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("connection handler panicked", "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return s.exchange(conn, log)
	}()
	if err != nil {
		s.failed.Add(1)
		metrics.IncrCounterWithLabels(failureCounter, 1, []metrics.Label{{Name: "reason", Value: failureReason(err)}})
		log.Warnw("connection failed", "err", err)
		return
	}
	s.served.Add(1)
	metrics.IncrCounter(servedCounter, 1)
}

// exchange reads one request, dispatches it and writes the response. Bytes that
// do not decode to a request are dropped without a reply.
func (s *Server) exchange(conn net.Conn, log *logger.Logger) error {
	if s.opts.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.opts.IOTimeout)); err != nil {
			return fmt.Errorf("setting deadline: %w", err)
		}
	}
	bs, err := s.opts.Framer.ReadMessage(conn)
	if err != nil {
		return err
	}
	req, err := protocol.DecodeRequest(bs)
	if err != nil {
		return err
	}
	log.Debugw("received request", "method", req.Method)

	resp := s.dispatcher.Dispatch(s.ctx, req)
	out, err := protocol.Encode(resp)
	if err != nil {
		log.Errorw("unencodable response", "method", req.Method, "err", err)
		if out, err = protocol.Encode(protocol.Failure("internal error")); err != nil {
			return err
		}
	}
	err = s.opts.Framer.WriteMessage(conn, out)
	if errors.Is(err, transport.ErrMessageTooLarge) {
		log.Errorw("response too large", "method", req.Method, "size", len(out))
		if out, err = protocol.Encode(protocol.Failure("response too large")); err == nil {
			err = s.opts.Framer.WriteMessage(conn, out)
		}
	}
	if err != nil {
		return err
	}
	log.Debugw("sent response", "method", req.Method, "status", resp.Status)
	return nil
}

func failureReason(err error) string {
	var de *protocol.DecodeError
	var te *transport.TransferError
	switch {
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &te):
		return te.Op
	default:
		return "other"
	}
}
