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
	"errors"
	"fmt"
	"time"
)

// TargetProfile describes the identity the PN532 presents when emulating a
// passive ISO14443A target.
type TargetProfile struct {
	UID     []byte // 3 bytes, the PN532 prepends the cascade byte itself
	SensRes [2]byte
	SelRes  byte
	Mode    byte
}

// Type4TargetProfile returns a profile advertising ISO-DEP support (SEL_RES
// 0x60), so readers drive the tag with ISO7816 APDUs.
func Type4TargetProfile(uid []byte) TargetProfile {
	return TargetProfile{
		Mode:    0x01, // passive only
		SensRes: [2]byte{0x00, 0x40},
		UID:     uid,
		SelRes:  0x60,
	}
}

// Type2TargetProfile returns a profile for a plain memory tag (SEL_RES 0x00),
// so readers drive it with Type 2 READ commands.
func Type2TargetProfile(uid []byte) TargetProfile {
	return TargetProfile{
		Mode:    0x01,
		SensRes: [2]byte{0x00, 0x40},
		UID:     uid,
		SelRes:  0x00,
	}
}

// marshal lays the profile out as TgInitAsTarget expects: mode byte, 6 bytes
// of MIFARE parameters (SENS_RES, UID, SEL_RES), then 18 zero FeliCa bytes
// and a zero NFCID3/general-bytes length.
func (p TargetProfile) marshal() ([]byte, error) {
	if len(p.UID) != 3 {
		return nil, fmt.Errorf("%w: target UID must be 3 bytes, got %d", ErrCommandFailed, len(p.UID))
	}
	args := make([]byte, 0, 37)
	args = append(args, p.Mode)
	args = append(args, p.SensRes[0], p.SensRes[1])
	args = append(args, p.UID...)
	args = append(args, p.SelRes)
	args = append(args, make([]byte, 18)...) // FeliCa params, unused
	args = append(args, make([]byte, 10)...) // NFCID3t, unused
	args = append(args, 0x00)                // LEN Gt
	args = append(args, 0x00)                // LEN Tt
	return args, nil
}

// InitAsTarget configures the PN532 as a passive target and waits up to
// timeout for a reader to activate it. Returns false with a nil error when
// no reader showed up in time; the caller just tries again.
func (d *Device) InitAsTarget(ctx context.Context, profile TargetProfile, timeout time.Duration) (bool, error) {
	args, err := profile.marshal()
	if err != nil {
		return false, err
	}
	if timeout > 0 {
		if err := d.transport.SetTimeout(timeout); err != nil {
			return false, fmt.Errorf("failed to set activation timeout: %w", err)
		}
	}

	res, err := d.transport.SendCommandWithContext(ctx, cmdTgInitAsTarget, args)
	if err != nil {
		if errors.Is(err, ErrTransportTimeout) {
			return false, nil
		}
		return false, fmt.Errorf("TgInitAsTarget failed: %w", err)
	}
	if len(res) < 2 || res[0] != cmdTgInitAsTarget+1 {
		return false, NewInvalidResponseError("TgInitAsTarget", "")
	}

	Debugf("activated as target, mode 0x%02X", res[1])
	return true, nil
}

// TgGetData receives the next frame from the activated reader. A non-zero
// status means the reader deselected or released the target; that is
// reported as ErrTargetReleased so the session loop can end cleanly.
func (d *Device) TgGetData(ctx context.Context) ([]byte, error) {
	res, err := d.transport.SendCommandWithContext(ctx, cmdTgGetData, nil)
	if err != nil {
		return nil, fmt.Errorf("TgGetData failed: %w", err)
	}
	if len(res) < 2 || res[0] != cmdTgGetData+1 {
		return nil, NewInvalidResponseError("TgGetData", "")
	}
	if res[1] != 0x00 {
		return nil, fmt.Errorf("%w: status 0x%02X", ErrTargetReleased, res[1])
	}
	return res[2:], nil
}

// TgSetData sends a response frame back to the activated reader.
func (d *Device) TgSetData(ctx context.Context, data []byte) error {
	res, err := d.transport.SendCommandWithContext(ctx, cmdTgSetData, data)
	if err != nil {
		return fmt.Errorf("TgSetData failed: %w", err)
	}
	if len(res) < 2 || res[0] != cmdTgSetData+1 {
		return NewInvalidResponseError("TgSetData", "")
	}
	if res[1] != 0x00 {
		return fmt.Errorf("%w: status 0x%02X", ErrTargetReleased, res[1])
	}
	return nil
}
