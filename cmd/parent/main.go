// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tamago-labs/bodhi-tree-ai/config"
	"github.com/tamago-labs/bodhi-tree-ai/dispatch"
	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/service"
	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "parent",
	Short: "Answer requests from an enclave over vsock (or tcp when built with -tags localtest)",
	Long: `parent listens for connections from the enclave and answers one request per
connection. The port comes from VSOCK_PORT (vsock) or PORT (tcp), default 5005.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to yaml configuration (defaults apply when empty)")
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("could not read configuration: %w", err)
	}
	logger.Init(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = service.Start(ctx, cfg, dispatch.New())
	var be *transport.BindError
	switch {
	case errors.As(err, &be):
		logger.Fatalw("failed to bind listener", "endpoint", be.Endpoint, "err", be.Err)
	case errors.Is(err, context.Canceled):
		logger.Infow("received signal, shut down")
		return nil
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
