// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package client talks to the parent's control server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tamago-labs/bodhi-tree-ai/protocol"
)

type ControlClient struct {
	Addr string
}

// Do dispatches request on the parent without going through the enclave transport.
func (cc *ControlClient) Do(request *protocol.Request) (*protocol.Response, error) {
	bs, err := protocol.Encode(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request : %w", err)
	}
	return cc.DoJSON(bs)
}

func (cc *ControlClient) DoJSON(request []byte) (*protocol.Response, error) {
	req, err := http.NewRequest(http.MethodPut, cc.url("/control"), bytes.NewBuffer(request))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := do(req)
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("could not parse server response, body=%s : %w", body, err)
	}
	return resp, nil
}

// Stats fetches the parent's connection counters into v.
func (cc *ControlClient) Stats(v any) error {
	req, err := http.NewRequest(http.MethodGet, cc.url("/control/stats"), nil)
	if err != nil {
		return err
	}
	body, err := do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("could not parse stats, body=%s : %w", body, err)
	}
	return nil
}

// SetLogLevel changes the parent's log level, ex: "DEBUG"
func (cc *ControlClient) SetLogLevel(level string) error {
	form := url.Values{"level": []string{level}}
	req, err := http.NewRequest(http.MethodPost, cc.url("/control/loglevel"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = do(req)
	return err
}

func (cc *ControlClient) url(path string) string {
	return fmt.Sprintf("http://%v%v", cc.Addr, path)
}

func do(req *http.Request) ([]byte, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed : %w", err)
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body : %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed, status=%v, body=%s", resp.Status, body)
	}
	return body, nil
}
