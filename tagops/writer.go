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
	"github.com/erikbuild/klippyNFC/pkg/ndef"
)

// WriteURL encodes url as a single URI record and writes it to the selected
// tag: the capability container page first, then the TLV area page by page.
// The first failed page aborts the write; a partially written tag is left
// as-is and reported through the error.
func (t *TagOperations) WriteURL(ctx context.Context, url string) error {
	if t.tag == nil {
		return ErrNoTag
	}

	record, err := ndef.EncodeURI(url)
	if err != nil {
		return fmt.Errorf("cannot encode URL: %w", err)
	}
	cc, tlv, err := klippynfc.BuildType2Memory(record)
	if err != nil {
		return err
	}

	if err := t.device.WritePage(ctx, klippynfc.Type2CCPage, cc); err != nil {
		return fmt.Errorf("capability container: %w", err)
	}
	for _, w := range klippynfc.PlanPageWrites(klippynfc.Type2DataPage, tlv) {
		if err := t.device.WritePage(ctx, w.Page, w.Data[:]); err != nil {
			return fmt.Errorf("data area: %w", err)
		}
	}
	return nil
}

// Verify reads the selected tag back and compares its first URI record
// against url. A mismatch is reported through SessionResult.Verified, not as
// an error; errors mean the read itself failed.
func (t *TagOperations) Verify(ctx context.Context, url string) (*SessionResult, error) {
	result, err := t.ReadTag(ctx)
	if err != nil {
		return result, err
	}
	result.Verified = result.URL == url
	return result, nil
}
