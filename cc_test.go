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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildType4CC(t *testing.T) {
	t.Parallel()

	cc := BuildType4CC(0x0021)
	require.Len(t, cc, 15)

	expected := []byte{
		0x00, 0x0F, // CCLEN
		0x20,       // mapping version 2.0
		0x00, 0x3B, // MLe
		0x00, 0x34, // MLc
		0x04, 0x06, // NDEF File Control TLV
		0xE1, 0x04, // NDEF file ID
		0x00, 0x21, // max NDEF size
		0x00, // read access: free
		0xFF, // write access: none
	}
	assert.Equal(t, expected, cc)
}

func TestBuildType4CCAdvertisesFileSize(t *testing.T) {
	t.Parallel()

	cc := BuildType4CC(300)
	assert.Equal(t, byte(300>>8), cc[11])
	assert.Equal(t, byte(300&0xFF), cc[12])
}

func TestBuildType2CC(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0xE1, 0x10, 0x12, 0x00}, BuildType2CC(144))
	assert.Equal(t, []byte{0xE1, 0x10, 0x06, 0x00}, BuildType2CC(48))
}

func TestParseType2CC(t *testing.T) {
	t.Parallel()

	cc, err := ParseType2CC([]byte{0xE1, 0x10, 0x12, 0x00})
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), cc.Version)
	assert.Equal(t, 144, cc.DataAreaSize())
	assert.Equal(t, byte(0), cc.ReadAccess())
	assert.Equal(t, byte(0), cc.WriteAccess())
}

func TestParseType2CCBadMagic(t *testing.T) {
	t.Parallel()

	_, err := ParseType2CC([]byte{0x00, 0x10, 0x12, 0x00})
	require.ErrorIs(t, err, ErrInvalidMagic)

	_, err = ParseType2CC([]byte{0xE1, 0x10})
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestParseType2CCVersionMismatchNotFatal(t *testing.T) {
	t.Parallel()

	// A v2.0 mapping byte on a Type 2 tag is unexpected but readable.
	cc, err := ParseType2CC([]byte{0xE1, 0x20, 0x12, 0x00})
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), cc.Version)
}

func TestCapabilityContainerAccessNibbles(t *testing.T) {
	t.Parallel()

	cc := CapabilityContainer{Version: 0x10, SizeByte: 0x12, Access: 0x0F}
	assert.Equal(t, byte(0x0), cc.ReadAccess())
	assert.Equal(t, byte(0xF), cc.WriteAccess())
}
