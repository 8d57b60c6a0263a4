// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tamago-labs/bodhi-tree-ai/config"
	"github.com/tamago-labs/bodhi-tree-ai/enclave"
	"github.com/tamago-labs/bodhi-tree-ai/logger"
	"github.com/tamago-labs/bodhi-tree-ai/protocol"
	"github.com/tamago-labs/bodhi-tree-ai/transport"
)

var (
	configPath string
	method     string
	params     string
)

var rootCmd = &cobra.Command{
	Use:   "enclave",
	Short: "Send one request to the parent and print its response",
	Long: `enclave connects to the parent (retrying up to connect.maxAttempts times with
exponential backoff), sends a single request, prints the JSON response on
stdout and exits.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to yaml configuration (defaults apply when empty)")
	rootCmd.Flags().StringVar(&method, "method", "ping", "request method")
	rootCmd.Flags().StringVar(&params, "params", "{}", "request params as JSON")
}

func parseParams(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid --params: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid --params: trailing data")
	}
	return v, nil
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("could not read configuration: %w", err)
	}
	logger.Init(cfg)
	defer logger.Sync()

	p, err := parseParams(params)
	if err != nil {
		return err
	}
	req, err := protocol.NewRequest(method, p)
	if err != nil {
		return err
	}
	tr, err := transport.For(cfg.Transport)
	if err != nil {
		return err
	}
	framer, err := cfg.Framing.Framer()
	if err != nil {
		return err
	}

	c := enclave.NewConnector(enclave.ConnectorOptions{
		Transport:      tr,
		Endpoint:       cfg.ConnectEndpoint(),
		Framer:         framer,
		MaxAttempts:    cfg.Connect.MaxAttempts,
		InitialBackoff: cfg.Connect.InitialBackoff,
		IOTimeout:      cfg.Connect.IOTimeout,
	})
	resp, err := c.Do(ctx, req)
	if err != nil {
		logger.Errorw("exchange failed", "method", req.Method, "err", err)
		return err
	}
	out, err := protocol.Encode(resp)
	if err != nil {
		return err
	}
	logger.Infow("received response", "method", req.Method, "status", resp.Status)
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
