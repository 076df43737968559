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

// Package tagops provides high-level read, write and verify operations
// against physical Type 2 tags through an initialized device.
package tagops

import (
	"context"
	"errors"
	"fmt"
	"time"

	klippynfc "github.com/erikbuild/klippyNFC"
)

var (
	// ErrNoTag indicates no tag has been detected yet
	ErrNoTag = errors.New("no tag detected")
)

// TagOperations drives read/write sessions against one detected tag.
// DetectTag must succeed before any other operation.
type TagOperations struct {
	device          *klippynfc.Device
	tag             *klippynfc.DetectedTag
	readWindowPages int
}

// Option configures a TagOperations instance
type Option func(*TagOperations)

// WithReadWindowPages overrides how many data pages ReadTag fetches.
func WithReadWindowPages(pages int) Option {
	return func(t *TagOperations) {
		if pages > 0 {
			t.readWindowPages = pages
		}
	}
}

// New creates a TagOperations instance on an initialized device
func New(device *klippynfc.Device, opts ...Option) *TagOperations {
	t := &TagOperations{
		device:          device,
		readWindowPages: klippynfc.DefaultReadWindowPages,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DetectTag polls for a tag in the field, waiting at most timeout, and
// selects it for the operations that follow.
func (t *TagOperations) DetectTag(ctx context.Context, timeout time.Duration) (*klippynfc.DetectedTag, error) {
	tag, err := t.device.ScanPassiveTarget(ctx, timeout)
	if err != nil {
		if errors.Is(err, klippynfc.ErrNoTagDetected) {
			return nil, ErrNoTag
		}
		return nil, fmt.Errorf("failed to detect tag: %w", err)
	}
	t.tag = tag
	return tag, nil
}

// Tag returns the currently selected tag, or nil before DetectTag.
func (t *TagOperations) Tag() *klippynfc.DetectedTag {
	return t.tag
}

// UID returns the selected tag's UID bytes, or nil before DetectTag.
func (t *TagOperations) UID() []byte {
	if t.tag == nil {
		return nil
	}
	return t.tag.UIDBytes
}

// Release deselects the current tag so it can be detected again.
func (t *TagOperations) Release(ctx context.Context) error {
	t.tag = nil
	if err := t.device.Release(ctx); err != nil {
		return fmt.Errorf("failed to release tag: %w", err)
	}
	return nil
}
