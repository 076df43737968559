// Copyright 2026 The KlippyNFC Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uart implements the PN532 transport over a serial port.
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	klippynfc "github.com/erikbuild/klippyNFC"
	"github.com/erikbuild/klippyNFC/internal/frame"
)

const (
	defaultBaudRate = 115200
	// readPollTimeout is the per-Read timeout on the port; the overall
	// response timeout is enforced across polls.
	readPollTimeout = 50 * time.Millisecond
	defaultTimeout  = 1 * time.Second
	maxNackRetries  = 3
)

// Transport implements the klippynfc.Transport interface over UART.
type Transport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens the serial port at 115200 8N1 and returns the transport.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readPollTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
	}, nil
}

// SendCommand sends a command and waits for its response frame.
func (t *Transport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return t.SendCommandWithContext(context.Background(), cmd, args)
}

// SendCommandWithContext sends a command, honoring ctx between I/O polls.
func (t *Transport) SendCommandWithContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wire, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, klippynfc.NewTransportError("SendCommand", t.portName, err,
			klippynfc.ErrorTypePermanent)
	}

	if err := t.wakeUp(); err != nil {
		return nil, err
	}
	if err := t.write(wire); err != nil {
		return nil, err
	}
	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		res, err := t.readResponse(ctx)
		if err == nil {
			_ = t.write(frame.AckFrame)
			return res, nil
		}
		if errors.Is(err, klippynfc.ErrFrameCorrupted) && attempt < maxNackRetries {
			klippynfc.Debugf("corrupted frame on %s, sending NACK: %v", t.portName, err)
			if nackErr := t.write(frame.NackFrame); nackErr != nil {
				return nil, nackErr
			}
			continue
		}
		return nil, err
	}
}

// SetTimeout sets the overall response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	t.port = nil
	return nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	return t.port != nil
}

// Type returns the transport type.
func (*Transport) Type() klippynfc.TransportType {
	return klippynfc.TransportUART
}

// wakeUp raises the PN532 out of low-power mode: a 0x55 dummy byte followed
// by enough zero padding for the wake-up time.
func (t *Transport) wakeUp() error {
	wake := make([]byte, 16)
	wake[0] = 0x55
	return t.write(wake)
}

func (t *Transport) write(data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART write failed: %w", err)
	}
	if n != len(data) {
		return klippynfc.NewTransportError("write", t.portName,
			klippynfc.ErrTransportWrite, klippynfc.ErrorTypeTransient)
	}
	if err := t.port.Drain(); err != nil {
		return fmt.Errorf("UART drain failed: %w", err)
	}
	return nil
}

// waitAck scans the incoming byte stream for the 6-byte ACK frame. Garbage
// ahead of the ACK is discarded one byte at a time.
func (t *Transport) waitAck(ctx context.Context) error {
	deadline := time.Now().Add(t.timeout)
	window := make([]byte, 0, len(frame.AckFrame))
	buf := make([]byte, 1)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := t.port.Read(buf)
		if err != nil {
			return fmt.Errorf("UART ACK read failed: %w", err)
		}
		if n == 0 {
			if time.Now().After(deadline) {
				return klippynfc.NewTransportError("waitAck", t.portName,
					klippynfc.ErrNoACK, klippynfc.ErrorTypeTransient)
			}
			continue
		}

		window = append(window, buf[0])
		if len(window) < len(frame.AckFrame) {
			continue
		}
		if frame.IsAck(window) {
			return nil
		}
		window = window[1:]
	}
}

// readResponse accumulates bytes until a complete response frame parses or
// the timeout expires. A timeout maps to ErrTransportTimeout: callers
// waiting on field events treat that as "nothing happened".
func (t *Transport) readResponse(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	acc := make([]byte, 0, 270)
	buf := make([]byte, 64)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := t.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("UART read failed: %w", err)
		}
		if n > 0 {
			acc = append(acc, buf[:n]...)
			data, parseErr := frame.ParseResponse(acc)
			if parseErr == nil {
				return data, nil
			}
			if !errors.Is(parseErr, frame.ErrIncomplete) {
				return nil, klippynfc.NewFrameCorruptedError("readResponse", t.portName)
			}
		}
		if time.Now().After(deadline) {
			return nil, klippynfc.NewTimeoutError("readResponse", t.portName)
		}
	}
}
