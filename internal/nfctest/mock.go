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

// Package nfctest provides a scriptable transport for exercising device and
// session logic without hardware.
package nfctest

import (
	"context"
	"sync"
	"time"

	klippynfc "github.com/erikbuild/klippyNFC"
)

// Call records one command sent through the mock.
type Call struct {
	Args []byte
	Cmd  byte
}

// MockTransport implements klippynfc.Transport against scripted responses.
// Responses are consumed per command in FIFO order; a handler takes
// precedence when set. An unscripted command gets a timeout error, which is
// what idle hardware produces.
type MockTransport struct {
	mu        sync.Mutex
	responses map[byte][]scripted
	handler   func(cmd byte, args []byte) ([]byte, error)
	calls     []Call
	timeout   time.Duration
	closed    bool
}

type scripted struct {
	data []byte
	err  error
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]scripted),
		timeout:   time.Second,
	}
}

// QueueResponse scripts one response for cmd. The data must be the full
// response starting with the response code byte.
func (m *MockTransport) QueueResponse(cmd byte, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = append(m.responses[cmd], scripted{data: data})
}

// QueueError scripts one error return for cmd.
func (m *MockTransport) QueueError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = append(m.responses[cmd], scripted{err: err})
}

// SetHandler routes all commands through fn instead of the queues.
func (m *MockTransport) SetHandler(fn func(cmd byte, args []byte) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Calls returns every command sent so far.
func (m *MockTransport) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded calls for one command.
func (m *MockTransport) CallsTo(cmd byte) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if c.Cmd == cmd {
			out = append(out, c)
		}
	}
	return out
}

// SendCommand implements klippynfc.Transport.
func (m *MockTransport) SendCommand(cmd byte, args []byte) ([]byte, error) {
	return m.SendCommandWithContext(context.Background(), cmd, args)
}

// SendCommandWithContext implements klippynfc.Transport.
func (m *MockTransport) SendCommandWithContext(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, klippynfc.ErrTransportClosed
	}
	argsCopy := make([]byte, len(args))
	copy(argsCopy, args)
	m.calls = append(m.calls, Call{Cmd: cmd, Args: argsCopy})

	if m.handler != nil {
		fn := m.handler
		m.mu.Unlock()
		return fn(cmd, args)
	}

	queue := m.responses[cmd]
	if len(queue) == 0 {
		m.mu.Unlock()
		return nil, klippynfc.NewTimeoutError("SendCommand", "mock")
	}
	next := queue[0]
	m.responses[cmd] = queue[1:]
	m.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return next.data, nil
}

// SetTimeout implements klippynfc.Transport.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Timeout returns the last timeout set on the transport.
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Close implements klippynfc.Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsConnected implements klippynfc.Transport.
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type implements klippynfc.Transport.
func (*MockTransport) Type() klippynfc.TransportType {
	return klippynfc.TransportMock
}
