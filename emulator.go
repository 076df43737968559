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

package klippynfc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/erikbuild/klippyNFC/internal/syncutil"
	"github.com/erikbuild/klippyNFC/pkg/ndef"
)

// TagType selects which tag personality the emulator presents.
type TagType int

const (
	// TagType4 emulates an ISO-DEP tag driven by ISO7816 APDUs.
	TagType4 TagType = iota
	// TagType2 emulates a plain memory tag driven by Type 2 READ commands.
	TagType2
)

func (t TagType) String() string {
	switch t {
	case TagType4:
		return "type4"
	case TagType2:
		return "type2"
	default:
		return fmt.Sprintf("TagType(%d)", int(t))
	}
}

// EmulatorConfig configures an emulation session.
type EmulatorConfig struct {
	// URL is the URI the emulated tag serves.
	URL string
	// UID is the 3-byte target UID as a hex string.
	UID string
	// Type selects the tag personality.
	Type TagType
	// ActivationTimeout bounds each wait for a reader to appear.
	ActivationTimeout time.Duration
	// IdleDelay is the pause between activation attempts when no reader
	// is present.
	IdleDelay time.Duration
	// ErrorBackoff is the pause after a failed session before retrying.
	ErrorBackoff time.Duration
	// ErrorBudget is how many consecutive session failures are tolerated
	// before the loop gives up.
	ErrorBudget int
	// StopTimeout bounds how long Stop waits for the loop to exit.
	StopTimeout time.Duration
}

// DefaultEmulatorConfig returns an EmulatorConfig with the timings used by
// the stock emulation loop.
func DefaultEmulatorConfig(url string) EmulatorConfig {
	return EmulatorConfig{
		URL:               url,
		UID:               "010203",
		Type:              TagType4,
		ActivationTimeout: 1 * time.Second,
		IdleDelay:         100 * time.Millisecond,
		ErrorBackoff:      1 * time.Second,
		ErrorBudget:       10,
		StopTimeout:       2 * time.Second,
	}
}

// EmulatorStatus is a point-in-time snapshot of the emulation loop.
type EmulatorStatus struct {
	URL        string
	Running    bool
	Sessions   int
	ErrorCount int
}

// Emulator runs the tag emulation loop: wait for a reader, serve one session,
// repeat. It owns its Device for the lifetime of the loop.
type Emulator struct {
	device  *Device
	config  EmulatorConfig
	uid     []byte
	done    chan struct{}
	err     error
	running atomic.Bool
	stop    atomic.Bool

	mu         syncutil.RWMutex
	url        string
	sessions   int
	errorCount int
}

// NewEmulator creates an emulator for the given device. The device must
// already be initialized.
func NewEmulator(device *Device, config EmulatorConfig) (*Emulator, error) {
	if config.URL == "" {
		return nil, errors.New("emulator URL must not be empty")
	}
	uid, err := hex.DecodeString(config.UID)
	if err != nil || len(uid) != 3 {
		return nil, fmt.Errorf("invalid target UID %q: need 3 hex bytes", config.UID)
	}
	// Fail early on URLs the record codec cannot carry.
	if _, err := ndef.EncodeURI(config.URL); err != nil {
		return nil, fmt.Errorf("cannot encode URL: %w", err)
	}
	return &Emulator{
		device: device,
		config: config,
		uid:    uid,
		url:    config.URL,
	}, nil
}

// Start launches the emulation loop in its own goroutine. It returns
// ErrEmulationRunning if the loop is already active.
func (e *Emulator) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrEmulationRunning
	}
	e.stop.Store(false)
	e.err = nil
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		defer e.running.Store(false)
		e.err = e.run(ctx)
	}()
	return nil
}

// Stop asks the loop to finish and waits up to StopTimeout for it. A session
// in progress completes first; ErrStopTimeout means the loop is still wedged
// on the hardware after the wait.
func (e *Emulator) Stop() error {
	if !e.running.Load() {
		return nil
	}
	e.stop.Store(true)
	select {
	case <-e.done:
		return nil
	case <-time.After(e.config.StopTimeout):
		return ErrStopTimeout
	}
}

// Err returns the terminal error of the last run, if any. Valid once the
// loop has stopped.
func (e *Emulator) Err() error {
	if e.running.Load() {
		return nil
	}
	return e.err
}

// SetURL swaps the URL the tag serves. Takes effect on the next reader
// activation; a session already in progress keeps serving the old content.
func (e *Emulator) SetURL(url string) error {
	if _, err := ndef.EncodeURI(url); err != nil {
		return fmt.Errorf("cannot encode URL: %w", err)
	}
	e.mu.Lock()
	e.url = url
	e.mu.Unlock()
	return nil
}

// URL returns the URL currently being served.
func (e *Emulator) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

// Status reports the loop state.
func (e *Emulator) Status() EmulatorStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return EmulatorStatus{
		Running:    e.running.Load(),
		URL:        e.url,
		Sessions:   e.sessions,
		ErrorCount: e.errorCount,
	}
}

func (e *Emulator) profile() TargetProfile {
	if e.config.Type == TagType2 {
		return Type2TargetProfile(e.uid)
	}
	return Type4TargetProfile(e.uid)
}

// run is the emulation loop. Each iteration re-reads the URL so SetURL is
// picked up, waits for activation, and serves one full reader session.
// Consecutive failures are counted against ErrorBudget; any successful
// session resets the count.
func (e *Emulator) run(ctx context.Context) error {
	for {
		if e.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		activated, err := e.device.InitAsTarget(ctx, e.profile(), e.config.ActivationTimeout)
		if err != nil {
			if terminal := e.recordFailure(err); terminal != nil {
				return terminal
			}
			e.pause(ctx, e.config.ErrorBackoff)
			continue
		}
		if !activated {
			e.pause(ctx, e.config.IdleDelay)
			continue
		}

		err = e.serve(ctx)
		if err != nil {
			Debugf("emulation session failed: %v", err)
			if terminal := e.recordFailure(err); terminal != nil {
				return terminal
			}
			e.pause(ctx, e.config.ErrorBackoff)
			continue
		}
		e.recordSuccess()
	}
}

func (e *Emulator) recordFailure(err error) error {
	e.mu.Lock()
	e.errorCount++
	count := e.errorCount
	e.mu.Unlock()
	if count > e.config.ErrorBudget {
		return fmt.Errorf("%w after %d consecutive errors: %w", ErrEmulationStopped, count, err)
	}
	return nil
}

func (e *Emulator) recordSuccess() {
	e.mu.Lock()
	e.sessions++
	e.errorCount = 0
	e.mu.Unlock()
}

func (e *Emulator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// serve handles one activated reader session with the personality the
// profile advertised. A reader that deselects or walks out of the field ends
// the session successfully.
func (e *Emulator) serve(ctx context.Context) error {
	record, err := ndef.EncodeURI(e.URL())
	if err != nil {
		return err
	}
	if e.config.Type == TagType2 {
		_, tlv, err := BuildType2Memory(record)
		if err != nil {
			return err
		}
		return e.serveType2(ctx, tlv)
	}
	return e.serveType4(ctx, NewType4Engine(record))
}

// serveType4 answers ISO7816 APDUs until the reader releases the target.
func (e *Emulator) serveType4(ctx context.Context, engine *Type4Engine) error {
	for {
		if e.stop.Load() {
			return nil
		}
		data, err := e.device.TgGetData(ctx)
		if err != nil {
			if errors.Is(err, ErrTargetReleased) {
				return nil
			}
			return err
		}

		response, err := engine.Handle(data)
		if err != nil {
			// Shorter than an APDU header: nothing to answer.
			Debugf("ignoring short APDU (%d bytes)", len(data))
			continue
		}
		if err := e.device.TgSetData(ctx, response); err != nil {
			if errors.Is(err, ErrTargetReleased) {
				return nil
			}
			return err
		}
	}
}

// serveType2 answers Type 2 READ commands against a logical memory image.
// Pages 0-2 carry the UID and internal bytes, page 3 the capability
// container, page 4 onward the TLV area.
func (e *Emulator) serveType2(ctx context.Context, tlv []byte) error {
	image := make([]byte, Type2DataPage*Type2PageSize, Type2DataPage*Type2PageSize+len(tlv))
	copy(image, e.uid) // pages 0-2: UID then zeroed internal/lock bytes
	copy(image[Type2CCPage*Type2PageSize:], BuildType2CC(Type2Capacity))
	image = append(image, tlv...)

	for {
		if e.stop.Load() {
			return nil
		}
		data, err := e.device.TgGetData(ctx)
		if err != nil {
			if errors.Is(err, ErrTargetReleased) {
				return nil
			}
			return err
		}

		var response []byte
		if len(data) >= 2 && data[0] == tag2CmdRead {
			response = readType2Window(image, int(data[1]))
		} else {
			// Writes and anything else get a NAK.
			Debugf("NAK for tag 2 command % X", data)
			response = []byte{0x00}
		}
		if err := e.device.TgSetData(ctx, response); err != nil {
			if errors.Is(err, ErrTargetReleased) {
				return nil
			}
			return err
		}
	}
}

// readType2Window returns the 16-byte window at the given page, zero-padded
// past the end of the image.
func readType2Window(image []byte, page int) []byte {
	window := make([]byte, type2ReadChunk)
	offset := page * Type2PageSize
	if offset < len(image) {
		copy(window, image[offset:])
	}
	return window
}
