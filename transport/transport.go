// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

// Package transport provides the connection-oriented byte streams used between
// an enclave and its parent: AF_VSOCK in production and loopback TCP for local
// testing. Both satisfy the same Transport interface, so retry and framing logic
// above it is written once.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/mdlayher/vsock"
)

// Kind names a transport implementation.
type Kind string

const (
	KindVsock Kind = "vsock"
	KindTCP   Kind = "tcp"
)

const (
	// CIDAny binds a listener to every context ID (VMADDR_CID_ANY).
	CIDAny uint32 = 0xFFFFFFFF
	// CIDParent reaches the parent instance from inside a Nitro enclave.
	CIDParent uint32 = 3
)

// Endpoint identifies one side of a connection.
//
// For vsock endpoints CID and Port are used; for tcp endpoints Host and Port.
type Endpoint struct {
	Kind Kind
	CID  uint32
	Host string
	Port uint32
}

func (e Endpoint) String() string {
	switch e.Kind {
	case KindVsock:
		return fmt.Sprintf("vsock://%d:%d", e.CID, e.Port)
	case KindTCP:
		return "tcp://" + e.hostPort()
	default:
		return fmt.Sprintf("%s://%d", e.Kind, e.Port)
	}
}

func (e Endpoint) hostPort() string {
	return net.JoinHostPort(e.Host, strconv.FormatUint(uint64(e.Port), 10))
}

// Transport opens outbound connections and binds listeners for one socket family.
type Transport interface {
	// Dial opens a fresh connection to ep. A failed Dial holds no resources.
	Dial(ctx context.Context, ep Endpoint) (net.Conn, error)
	// Listen binds ep and returns a listener ready to Accept.
	Listen(ep Endpoint) (net.Listener, error)
	Kind() Kind
}

// For returns the Transport implementing kind.
func For(kind Kind) (Transport, error) {
	switch kind {
	case KindVsock:
		return Vsock{}, nil
	case KindTCP:
		return &TCP{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

// Vsock is a Transport over AF_VSOCK sockets.
type Vsock struct{}

var _ Transport = Vsock{}

func (Vsock) Kind() Kind { return KindVsock }

func (Vsock) Dial(ctx context.Context, ep Endpoint) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ep.Kind != KindVsock {
		return nil, fmt.Errorf("vsock transport cannot dial %v", ep)
	}
	// a failed dial yields a nil *vsock.Conn; return an untyped nil instead
	c, err := vsock.Dial(ep.CID, ep.Port, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (Vsock) Listen(ep Endpoint) (net.Listener, error) {
	if ep.Kind != KindVsock {
		return nil, fmt.Errorf("vsock transport cannot listen on %v", ep)
	}
	ln, err := vsock.ListenContextID(ep.CID, ep.Port, nil)
	if err != nil {
		return nil, err
	}
	return ln, nil
}

// TCP is a Transport over TCP, intended for loopback addresses.
type TCP struct {
	Dialer net.Dialer
}

var _ Transport = (*TCP)(nil)

func (*TCP) Kind() Kind { return KindTCP }

func (t *TCP) Dial(ctx context.Context, ep Endpoint) (net.Conn, error) {
	if ep.Kind != KindTCP {
		return nil, fmt.Errorf("tcp transport cannot dial %v", ep)
	}
	return t.Dialer.DialContext(ctx, "tcp", ep.hostPort())
}

func (t *TCP) Listen(ep Endpoint) (net.Listener, error) {
	if ep.Kind != KindTCP {
		return nil, fmt.Errorf("tcp transport cannot listen on %v", ep)
	}
	var lc net.ListenConfig
	return lc.Listen(context.Background(), "tcp", ep.hostPort())
}

// Bind listens on ep with t. Failures are returned as a *BindError.
func Bind(t Transport, ep Endpoint) (net.Listener, error) {
	ln, err := t.Listen(ep)
	if err != nil {
		return nil, &BindError{Endpoint: ep, Err: err}
	}
	return ln, nil
}
