// Copyright 2026 Tamago Labs
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// A Framer delimits one message on a stream.
type Framer interface {
	// WriteMessage writes msg as a single message.
	WriteMessage(w io.Writer, msg []byte) error
	// ReadMessage reads the next message.
	ReadMessage(r io.Reader) ([]byte, error)
}

// FramingMode names a Framer.
type FramingMode string

const (
	FramingSingleRead     FramingMode = "single-read"
	FramingLengthPrefixed FramingMode = "length-prefixed"
)

const (
	DefaultBufferSize     = 8192
	DefaultMaxMessageSize = 1 << 20
)

// NewFramer returns the framer for mode. bufferSize sizes the single-read buffer
// and maxSize bounds length-prefixed frames; non-positive values use the defaults.
func NewFramer(mode FramingMode, bufferSize, maxSize int) (Framer, error) {
	switch mode {
	case FramingSingleRead, "":
		if bufferSize <= 0 {
			bufferSize = DefaultBufferSize
		}
		return SingleRead{BufferSize: bufferSize}, nil
	case FramingLengthPrefixed:
		if maxSize <= 0 {
			maxSize = DefaultMaxMessageSize
		}
		return LengthPrefixed{MaxSize: maxSize}, nil
	default:
		return nil, fmt.Errorf("unknown framing mode %q", mode)
	}
}

// SingleRead writes each message with one write and reads it back with one read
// into a BufferSize buffer. There is no delimiter: whatever the first read
// returns is the message. This matches peers that do not frame at all, and so
// only works for messages that fit the buffer and arrive in one segment.
type SingleRead struct {
	BufferSize int
}

func (s SingleRead) size() int {
	if s.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return s.BufferSize
}

func (s SingleRead) WriteMessage(w io.Writer, msg []byte) error {
	if len(msg) > s.size() {
		return &TransferError{Op: "send", Err: fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, len(msg), s.size())}
	}
	if _, err := w.Write(msg); err != nil {
		return &TransferError{Op: "send", Err: err}
	}
	return nil
}

func (s SingleRead) ReadMessage(r io.Reader) ([]byte, error) {
	buf := make([]byte, s.size())
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, &TransferError{Op: "recv", Err: ErrEmptyMessage}
	}
	return nil, &TransferError{Op: "recv", Err: err}
}

// LengthPrefixed precedes each message with its length as a 4-byte big-endian
// integer. Frames larger than MaxSize are rejected on both ends.
type LengthPrefixed struct {
	MaxSize int
}

func (l LengthPrefixed) max() int {
	if l.MaxSize <= 0 {
		return DefaultMaxMessageSize
	}
	return l.MaxSize
}

func (l LengthPrefixed) WriteMessage(w io.Writer, msg []byte) error {
	if len(msg) > l.max() || uint64(len(msg)) > math.MaxUint32 {
		return &TransferError{Op: "send", Err: fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, len(msg), l.max())}
	}
	buf := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(msg)))
	copy(buf[4:], msg)
	if _, err := w.Write(buf); err != nil {
		return &TransferError{Op: "send", Err: fmt.Errorf("writing frame: %w", err)}
	}
	return nil
}

func (l LengthPrefixed) ReadMessage(r io.Reader) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &TransferError{Op: "recv", Err: ErrEmptyMessage}
		}
		return nil, &TransferError{Op: "recv", Err: fmt.Errorf("reading size: %w", err)}
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	if uint64(size) > uint64(l.max()) {
		return nil, &TransferError{Op: "recv", Err: fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrMessageTooLarge, size, l.max())}
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &TransferError{Op: "recv", Err: fmt.Errorf("reading payload: %w", err)}
	}
	return buf, nil
}
