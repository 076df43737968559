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
	"time"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// InitRetryConfig configures the firmware version poll during Init
	InitRetryConfig *RetryConfig
	// Timeout is the default timeout for operations
	Timeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		InitRetryConfig: InitRetryConfig(),
		Timeout:         1 * time.Second,
	}
}

// Device wraps a Transport with the PN532 command set used by this module:
// initiator-side tag scanning and page access, and target-side activation
// and data exchange for emulation.
//
// Device is not safe for concurrent use. The emulation loop owns its Device
// exclusively for its whole lifetime; reader/writer callers invoke it one
// operation at a time.
type Device struct {
	transport       Transport
	config          *DeviceConfig
	firmwareVersion *FirmwareVersion
}

// FirmwareVersion contains PN532 firmware information
type FirmwareVersion struct {
	Version          string
	SupportIso14443a bool
	SupportIso14443b bool
	SupportIso18092  bool
}

// DetectedTag describes a tag found by ScanPassiveTarget.
type DetectedTag struct {
	DetectedAt time.Time
	UID        string // UID as hex string
	UIDBytes   []byte
	ATQ        []byte // SENS_RES bytes
	SAK        byte   // SEL_RES byte
}

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithTimeout sets the default operation timeout
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithInitRetryConfig overrides the bring-up retry configuration
func WithInitRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return errors.New("retry config must not be nil")
		}
		d.config.InitRetryConfig = config
		return nil
	}
}

// New creates a new device on the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
	}
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	return device, nil
}

// Init verifies communication with the PN532 and configures the SAM. The
// firmware version poll is retried per InitRetryConfig because the chip can
// still be waking when the first command arrives.
func (d *Device) Init(ctx context.Context) error {
	err := RetryWithConfig(ctx, d.config.InitRetryConfig, func() error {
		fw, err := d.GetFirmwareVersion(ctx)
		if err != nil {
			return err
		}
		d.firmwareVersion = fw
		return nil
	})
	if err != nil {
		return fmt.Errorf("firmware version check failed: %w", err)
	}

	Debugf("PN532 firmware version: %s", d.firmwareVersion.Version)
	return d.SAMConfiguration(ctx)
}

// FirmwareVersion returns the version read during Init, or nil before Init.
func (d *Device) FirmwareVersion() *FirmwareVersion {
	return d.firmwareVersion
}

// GetFirmwareVersion queries the PN532 firmware version
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.transport.SendCommandWithContext(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send GetFirmwareVersion command: %w", err)
	}
	if len(res) < 5 || res[0] != cmdGetFirmwareVersion+1 {
		return nil, NewInvalidResponseError("GetFirmwareVersion", "")
	}
	if res[1] != 0x32 {
		return nil, fmt.Errorf("%w: unexpected IC 0x%02X", ErrInvalidResponse, res[1])
	}
	return &FirmwareVersion{
		Version:          fmt.Sprintf("%d.%d", res[2], res[3]),
		SupportIso14443a: res[4]&0x01 == 0x01,
		SupportIso14443b: res[4]&0x02 == 0x02,
		SupportIso18092:  res[4]&0x04 == 0x04,
	}, nil
}

// SAMConfiguration puts the SAM in normal mode with the IRQ pin enabled
func (d *Device) SAMConfiguration(ctx context.Context) error {
	// mode 0x01 (normal), timeout 0x14 (1 second), use IRQ
	res, err := d.transport.SendCommandWithContext(ctx, cmdSamConfiguration, []byte{0x01, 0x14, 0x01})
	if err != nil {
		return fmt.Errorf("failed to send SAMConfiguration command: %w", err)
	}
	if len(res) < 1 || res[0] != cmdSamConfiguration+1 {
		return NewInvalidResponseError("SAMConfiguration", "")
	}
	return nil
}

// ScanPassiveTarget polls once for an ISO14443A tag in the field, waiting at
// most timeout. Returns ErrNoTagDetected when nothing answers.
func (d *Device) ScanPassiveTarget(ctx context.Context, timeout time.Duration) (*DetectedTag, error) {
	if timeout > 0 {
		if err := d.transport.SetTimeout(timeout); err != nil {
			return nil, fmt.Errorf("failed to set scan timeout: %w", err)
		}
	}

	// One target maximum, 106 kbps type A
	res, err := d.transport.SendCommandWithContext(ctx, cmdInListPassiveTarget, []byte{0x01, 0x00})
	if err != nil {
		if errors.Is(err, ErrTransportTimeout) {
			return nil, ErrNoTagDetected
		}
		return nil, fmt.Errorf("InListPassiveTarget failed: %w", err)
	}

	return parsePassiveTarget(res)
}

// parsePassiveTarget decodes an InListPassiveTarget response:
// [0x4B, NbTg, Tg, SENS_RES(2), SEL_RES, UIDLen, UID...]
func parsePassiveTarget(res []byte) (*DetectedTag, error) {
	if len(res) < 2 || res[0] != cmdInListPassiveTarget+1 {
		return nil, NewInvalidResponseError("InListPassiveTarget", "")
	}
	if res[1] == 0 {
		return nil, ErrNoTagDetected
	}
	if len(res) < 7 {
		return nil, fmt.Errorf("%w: target data truncated", ErrInvalidResponse)
	}

	atq := res[3:5]
	sak := res[5]
	uidLen := int(res[6])
	if len(res) < 7+uidLen {
		return nil, fmt.Errorf("%w: UID truncated", ErrInvalidResponse)
	}
	uid := make([]byte, uidLen)
	copy(uid, res[7:7+uidLen])

	return &DetectedTag{
		UID:        hex.EncodeToString(uid),
		UIDBytes:   uid,
		ATQ:        []byte{atq[0], atq[1]},
		SAK:        sak,
		DetectedAt: time.Now(),
	}, nil
}

// ReadPages issues a Type 2 READ for the given page through InDataExchange.
// The tag answers with 16 bytes: the requested page and the three after it.
func (d *Device) ReadPages(ctx context.Context, page int) ([]byte, error) {
	res, err := d.dataExchange(ctx, []byte{tag2CmdRead, byte(page)})
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, err)
	}
	if len(res) < type2ReadChunk {
		return nil, fmt.Errorf("read page %d: %w: %d bytes", page, ErrInvalidResponse, len(res))
	}
	return res[:type2ReadChunk], nil
}

// WritePage writes one 4-byte page through InDataExchange.
func (d *Device) WritePage(ctx context.Context, page int, data []byte) error {
	if len(data) != Type2PageSize {
		return fmt.Errorf("%w: page write needs %d bytes, got %d", ErrTagWriteFailed, Type2PageSize, len(data))
	}
	args := make([]byte, 0, 2+Type2PageSize)
	args = append(args, tag2CmdWrite, byte(page))
	args = append(args, data...)
	if _, err := d.dataExchange(ctx, args); err != nil {
		return fmt.Errorf("write page %d: %w", page, err)
	}
	return nil
}

// dataExchange wraps InDataExchange for the selected target. Target number
// is always 1: the PN532 assigns it to the single tag this module scans for.
func (d *Device) dataExchange(ctx context.Context, data []byte) ([]byte, error) {
	res, err := d.transport.SendCommandWithContext(ctx, cmdInDataExchange, append([]byte{0x01}, data...))
	if err != nil {
		return nil, fmt.Errorf("failed to send data exchange command: %w", err)
	}
	if len(res) < 2 || res[0] != cmdInDataExchange+1 {
		return nil, NewInvalidResponseError("InDataExchange", "")
	}
	if res[1] != 0x00 {
		return nil, fmt.Errorf("%w: data exchange status 0x%02X", ErrCommandFailed, res[1])
	}
	return res[2:], nil
}

// Release releases the currently selected target, clearing HALT state so the
// same tag can be scanned again.
func (d *Device) Release(ctx context.Context) error {
	res, err := d.transport.SendCommandWithContext(ctx, cmdInRelease, []byte{0x00})
	if err != nil {
		return fmt.Errorf("InRelease failed: %w", err)
	}
	if len(res) < 2 || res[0] != cmdInRelease+1 {
		return NewInvalidResponseError("InRelease", "")
	}
	return nil
}

// SetTimeout sets the transport read timeout
func (d *Device) SetTimeout(timeout time.Duration) error {
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout: %w", err)
	}
	return nil
}

// Close closes the underlying transport
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
