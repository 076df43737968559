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

package tagops

import (
	"context"
	"fmt"

	klippynfc "github.com/erikbuild/klippyNFC"
)

// ReadTag reads the selected tag: capability container first, then a fixed
// window of data pages, then the NDEF message recovered from the TLV area.
// On failure partway through, the returned result still carries everything
// gathered before the failing stage.
func (t *TagOperations) ReadTag(ctx context.Context) (*SessionResult, error) {
	if t.tag == nil {
		return nil, ErrNoTag
	}
	result := &SessionResult{UID: t.tag.UID}

	ccBytes, err := t.readCC(ctx)
	if err != nil {
		return result, err
	}

	tlvBytes, err := t.readDataWindow(ctx)
	if err != nil {
		// The CC parses on its own even when the data read dies.
		if cc, ccErr := klippynfc.ParseType2CC(ccBytes); ccErr == nil {
			result.CC = cc
		}
		return result, err
	}

	rawNDEF, cc, err := klippynfc.ParseType2Memory(ccBytes, tlvBytes)
	result.CC = cc
	if err != nil {
		return result, fmt.Errorf("tag content: %w", err)
	}
	result.RawNDEF = rawNDEF

	msg, err := klippynfc.ParseMessage(rawNDEF)
	if err != nil {
		return result, fmt.Errorf("tag content: %w", err)
	}
	result.URL = msg.FirstURI()
	return result, nil
}

// readCC fetches the capability container page. The READ returns 16 bytes;
// only the first 4 belong to the CC.
func (t *TagOperations) readCC(ctx context.Context) ([]byte, error) {
	window, err := t.device.ReadPages(ctx, klippynfc.Type2CCPage)
	if err != nil {
		return nil, fmt.Errorf("%w: capability container: %w", klippynfc.ErrTagReadFailed, err)
	}
	return window[:klippynfc.Type2PageSize], nil
}

// readDataWindow fetches the fixed read window of data pages starting at the
// TLV area. The window is deliberately generous rather than sized from the
// CC, so a tag with a bogus size byte still reads.
func (t *TagOperations) readDataWindow(ctx context.Context) ([]byte, error) {
	want := t.readWindowPages * klippynfc.Type2PageSize
	data := make([]byte, 0, want+klippynfc.Type2PageSize*4)

	for _, page := range klippynfc.PlanPageReads(klippynfc.Type2DataPage, t.readWindowPages) {
		chunk, err := t.device.ReadPages(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("%w: data area: %w", klippynfc.ErrTagReadFailed, err)
		}
		data = append(data, chunk...)
	}
	return data[:want], nil
}
