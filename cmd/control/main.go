// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamago-labs/bodhi-tree-ai/protocol"
	"github.com/tamago-labs/bodhi-tree-ai/web/client"
)

var addr string

var rootCmd = &cobra.Command{
	Use:           "control",
	Short:         "Talk to a running parent's control server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:8081", "Address (hostname:port) where control server is listening")
	rootCmd.AddCommand(commandCmd(), statsCmd(), logLevelCmd())
}

func commandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "command <request.json>",
		Short: "Dispatch a JSON request on the parent and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %v: %w", args[0], err)
			}
			resp, err := (&client.ControlClient{Addr: addr}).DoJSON(bs)
			if err != nil {
				return err
			}
			out, err := protocol.Encode(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the parent's connection counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats map[string]uint64
			if err := (&client.ControlClient{Addr: addr}).Stats(&stats); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func logLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loglevel <DEBUG|INFO|WARNING|ERROR>",
		Short: "Change the parent's log level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return (&client.ControlClient{Addr: addr}).SetLogLevel(args[0])
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
