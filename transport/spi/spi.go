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

// Package spi implements the PN532 transport over SPI.
//
// The PN532 clocks SPI data LSB first while Linux SPI controllers are MSB
// first, so every byte on the wire is bit-reversed in software.
package spi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	klippynfc "github.com/erikbuild/klippyNFC"
	"github.com/erikbuild/klippyNFC/internal/frame"
)

// SPI prefix bytes selecting the PN532 bus operation
const (
	opDataWrite  = 0x01
	opStatusRead = 0x02
	opDataRead   = 0x03
	statusReady  = 0x01
)

const (
	defaultTimeout  = 1 * time.Second
	readyPollDelay  = 5 * time.Millisecond
	maxResponseSize = 270
)

// Transport implements the klippynfc.Transport interface over SPI.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	portName string
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens the SPI port (e.g. "SPI0.0") at 1 MHz mode 0.
func New(portName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}
	conn, err := port.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI port %s: %w", portName, err)
	}

	return &Transport{
		port:     port,
		conn:     conn,
		portName: portName,
		timeout:  defaultTimeout,
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
		return nil, klippynfc.NewTransportError("SendCommand", t.portName, err,
			klippynfc.ErrorTypePermanent)
	}

	if err := t.writeFrame(wire); err != nil {
		return nil, err
	}
	if err := t.waitReady(ctx); err != nil {
		return nil, err
	}
	if err := t.readAck(); err != nil {
		return nil, err
	}
	if err := t.waitReady(ctx); err != nil {
		return nil, err
	}
	return t.readResponse()
}

// SetTimeout sets the overall response timeout.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the SPI port.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	t.port = nil
	t.conn = nil
	return nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	return t.conn != nil
}

// Type returns the transport type.
func (*Transport) Type() klippynfc.TransportType {
	return klippynfc.TransportSPI
}

// reverseBits mirrors the bit order of one byte.
func reverseBits(b byte) byte {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

func reverseAll(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = reverseBits(b)
	}
	return out
}

// writeFrame sends a data-write operation carrying a full wire frame.
func (t *Transport) writeFrame(wire []byte) error {
	out := make([]byte, 0, len(wire)+1)
	out = append(out, opDataWrite)
	out = append(out, wire...)
	if err := t.conn.Tx(reverseAll(out), nil); err != nil {
		return fmt.Errorf("SPI write failed: %w", err)
	}
	return nil
}

// waitReady polls the status register until the PN532 signals a pending
// frame or the timeout expires.
func (t *Transport) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(t.timeout)
	out := reverseAll([]byte{opStatusRead, 0x00})
	in := make([]byte, 2)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.conn.Tx(out, in); err != nil {
			return fmt.Errorf("SPI status read failed: %w", err)
		}
		if reverseBits(in[1]) == statusReady {
			return nil
		}
		if time.Now().After(deadline) {
			return klippynfc.NewTimeoutError("waitReady", t.portName)
		}
		time.Sleep(readyPollDelay)
	}
}

// readAck reads and checks the 6-byte ACK frame.
func (t *Transport) readAck() error {
	buf, err := t.read(len(frame.AckFrame))
	if err != nil {
		return err
	}
	if !frame.IsAck(buf) {
		return klippynfc.NewTransportError("readAck", t.portName,
			klippynfc.ErrNoACK, klippynfc.ErrorTypeTransient)
	}
	return nil
}

// readResponse reads one bus transaction worth of response and parses it.
func (t *Transport) readResponse() ([]byte, error) {
	buf, err := t.read(maxResponseSize)
	if err != nil {
		return nil, err
	}
	data, err := frame.ParseResponse(buf)
	if err != nil {
		if errors.Is(err, frame.ErrErrorFrame) {
			return nil, klippynfc.NewTransportError("readResponse", t.portName, err,
				klippynfc.ErrorTypePermanent)
		}
		return nil, klippynfc.NewFrameCorruptedError("readResponse", t.portName)
	}
	return data, nil
}

// read performs a data-read operation of n payload bytes.
func (t *Transport) read(n int) ([]byte, error) {
	out := make([]byte, n+1)
	out[0] = reverseBits(opDataRead)
	in := make([]byte, n+1)
	if err := t.conn.Tx(out, in); err != nil {
		return nil, fmt.Errorf("SPI read failed: %w", err)
	}
	return reverseAll(in[1:]), nil
}
