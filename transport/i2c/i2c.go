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

// Package i2c implements the PN532 transport over I2C.
//
// The PN532 prepends a ready/status byte to every I2C read: bit 0 set means
// a frame is waiting, so reads poll until that bit comes up.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	klippynfc "github.com/erikbuild/klippyNFC"
	"github.com/erikbuild/klippyNFC/internal/frame"
)

// DefaultAddress is the PN532's fixed I2C address.
const DefaultAddress = 0x24

const (
	statusReady     = 0x01
	defaultTimeout  = 1 * time.Second
	readyPollDelay  = 5 * time.Millisecond
	maxResponseSize = 270
)

// Transport implements the klippynfc.Transport interface over I2C.
type Transport struct {
	bus     i2c.BusCloser
	dev     *i2c.Dev
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens the I2C bus (e.g. "1" or "/dev/i2c-1") with the PN532 at its
// fixed address.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	return &Transport{
		bus:     bus,
		dev:     &i2c.Dev{Bus: bus, Addr: DefaultAddress},
		busName: busName,
		timeout: defaultTimeout,
	}, nil
}

// SendCommand sends a command and waits for its response frame.
func (t *Transport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return t.SendCommandWithContext(context.Background(), cmd, args)
}

// SendCommandWithContext sends a command, honoring ctx between bus polls.
func (t *Transport) SendCommandWithContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wire, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, klippynfc.NewTransportError("SendCommand", t.busName, err,
			klippynfc.ErrorTypePermanent)
	}

	if err := t.dev.Tx(wire, nil); err != nil {
		return nil, fmt.Errorf("I2C write failed: %w", err)
	}
	if err := t.readAck(ctx); err != nil {
		return nil, err
	}
	return t.readResponse(ctx)
}

// SetTimeout sets the overall response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the I2C bus.
func (t *Transport) Close() error {
	if t.bus == nil {
		return nil
	}
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("I2C close failed: %w", err)
	}
	t.bus = nil
	t.dev = nil
	return nil
}

// IsConnected reports whether the bus is open.
func (t *Transport) IsConnected() bool {
	return t.dev != nil
}

// Type returns the transport type.
func (*Transport) Type() klippynfc.TransportType {
	return klippynfc.TransportI2C
}

// readReady polls until the PN532 reports a pending frame, then reads n
// payload bytes. The leading status byte is stripped.
func (t *Transport) readReady(ctx context.Context, n int) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	buf := make([]byte, n+1)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.dev.Tx(nil, buf); err != nil {
			return nil, fmt.Errorf("I2C read failed: %w", err)
		}
		if buf[0]&statusReady != 0 {
			return buf[1:], nil
		}
		if time.Now().After(deadline) {
			return nil, klippynfc.NewTimeoutError("readReady", t.busName)
		}
		time.Sleep(readyPollDelay)
	}
}

func (t *Transport) readAck(ctx context.Context) error {
	buf, err := t.readReady(ctx, len(frame.AckFrame))
	if err != nil {
		return err
	}
	if !frame.IsAck(buf) {
		return klippynfc.NewTransportError("readAck", t.busName,
			klippynfc.ErrNoACK, klippynfc.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) readResponse(ctx context.Context) ([]byte, error) {
	buf, err := t.readReady(ctx, maxResponseSize)
	if err != nil {
		return nil, err
	}
	data, err := frame.ParseResponse(buf)
	if err != nil {
		if errors.Is(err, frame.ErrErrorFrame) {
			return nil, klippynfc.NewTransportError("readResponse", t.busName, err,
				klippynfc.ErrorTypePermanent)
		}
		return nil, klippynfc.NewFrameCorruptedError("readResponse", t.busName)
	}
	return data, nil
}
