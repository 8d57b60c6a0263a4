// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package service creates and initializes all components required to run the parent
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamago-labs/bodhi-tree-ai/config"
	"github.com/tamago-labs/bodhi-tree-ai/dispatch"
	"github.com/tamago-labs/bodhi-tree-ai/health"
	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/metrics"
	"github.com/tamago-labs/bodhi-tree-ai/parent"
	"github.com/tamago-labs/bodhi-tree-ai/transport"
	"github.com/tamago-labs/bodhi-tree-ai/web/handlers"
	"github.com/tamago-labs/bodhi-tree-ai/web/middleware"
)

const serviceName = "bridge"

// Start binds the listener and serves enclave connections, plus the control
// server when configured. It only returns when a component has encountered an
// unrecoverable error or the provided context has been cancelled. A listener
// that cannot be bound is returned immediately as a *transport.BindError.
func Start(ctx context.Context, cfg *config.Config, d *dispatch.Dispatcher) error {
	tr, err := transport.For(cfg.Transport)
	if err != nil {
		return err
	}
	framer, err := cfg.Framing.Framer()
	if err != nil {
		return err
	}
	m, err := metrics.Init(ctx, cfg.Metrics, serviceName)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	ep := cfg.ListenEndpoint()
	ln, err := transport.Bind(tr, ep)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	server := parent.NewServer(ctx, parent.ServerOptions{
		Framer:        framer,
		Concurrent:    cfg.Listener.Mode(cfg.Transport) == config.Concurrent,
		MaxConcurrent: cfg.Listener.MaxConcurrent,
		IOTimeout:     cfg.Listener.IOTimeout,
	}, d)

	live, ready := health.New("live", nil), health.New("ready", errors.New("listener not started"))
	if cfg.ControlListenAddr != "" {
		controlMux := http.NewServeMux()
		controlMux.Handle("/health/live", middleware.Instrument(live))
		controlMux.Handle("/health/ready", middleware.Instrument(ready))
		controlMux.Handle("/control/loglevel", middleware.Instrument(handlers.NewSetLogLevel(cfg.Log.Level)))
		controlMux.Handle("/control/stats", middleware.Instrument(handlers.NewStats(server.Stats)))
		controlMux.Handle("/control", middleware.Instrument(handlers.NewControl(d)))
		if m.Handler != nil {
			controlMux.Handle("/metrics", m.Handler)
		}
		srv := &http.Server{Addr: cfg.ControlListenAddr, Handler: controlMux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			logger.Infof("Starting control http server on %v", cfg.ControlListenAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("control server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Infow("started parent", "endpoint", ep, "transport", cfg.Transport,
		"framing", cfg.Framing.Mode, "methods", d.Methods())
	goServe(g, ready, func() error { return server.Serve(ln) })

	return g.Wait()
}

// goServe marks ready and runs serve on g. Once serve returns, ready reports
// its error for good.
func goServe(g *errgroup.Group, ready *health.Health, serve func() error) {
	ready.Set(nil)
	g.Go(func() error {
		err := serve()
		ready.Set(fmt.Errorf("listener stopped: %w", err))
		return err
	})
}
