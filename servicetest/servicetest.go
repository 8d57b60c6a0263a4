// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package servicetest contains helpers shared by tests that run real listeners.
package servicetest

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/tamago-labs/bodhi-tree-ai/util"
)

func RetryFun[T any](timeout time.Duration, fun func() (T, error)) (T, error) {
	timech := time.After(timeout)
	var err error
	var res T
	for {
		select {
		case <-timech:
			return res, fmt.Errorf("timeout: %w", err)
		default:
			if res, err = fun(); err == nil {
				return res, nil
			}
			time.Sleep(util.Min(time.Second, timeout/10))
		}
	}
}

// Get fetches url and returns the body, failing on any non-200 status.
func Get(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status=%v : %s", resp.Status, body)
	}
	return string(body), nil
}

func WaitFor200(timeout time.Duration, url string) error {
	_, err := RetryFun(timeout, func() (string, error) { return Get(url) })
	return err
}

// RandomPort returns a loopback tcp port that was free when checked.
func RandomPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	if err := listener.Close(); err != nil {
		t.Fatal(err)
	}
	return port
}
