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

func TestBuildType2MemoryShortLength(t *testing.T) {
	t.Parallel()

	message := []byte{0xD1, 0x01, 0x01, 0x55, 0x04}
	cc, tlv, err := BuildType2Memory(message)
	require.NoError(t, err)

	assert.Equal(t, BuildType2CC(Type2Capacity), cc)
	assert.Equal(t, byte(TLVTypeNDEF), tlv[0])
	assert.Equal(t, byte(len(message)), tlv[1])
	assert.Equal(t, message, tlv[2:2+len(message)])
	assert.Equal(t, byte(TLVTypeTerminator), tlv[2+len(message)])
	assert.Zero(t, len(tlv)%Type2PageSize)
}

func TestBuildType2MemoryLongLength(t *testing.T) {
	t.Parallel()

	message := make([]byte, 300)
	_, tlv, err := BuildType2Memory(message)
	require.NoError(t, err)

	assert.Equal(t, []byte{TLVTypeNDEF, 0xFF, 0x01, 0x2C}, tlv[:4])
	assert.Equal(t, byte(TLVTypeTerminator), tlv[4+300])
}

func TestBuildType2MemoryLengthBoundary(t *testing.T) {
	t.Parallel()

	// 254 stays in the one-byte form, 255 escapes to the long form.
	_, tlv, err := BuildType2Memory(make([]byte, 254))
	require.NoError(t, err)
	assert.Equal(t, []byte{TLVTypeNDEF, 0xFE}, tlv[:2])

	_, tlv, err = BuildType2Memory(make([]byte, 255))
	require.NoError(t, err)
	assert.Equal(t, []byte{TLVTypeNDEF, 0xFF, 0x00, 0xFF}, tlv[:4])
}

func TestBuildType2MemoryTooLarge(t *testing.T) {
	t.Parallel()

	_, _, err := BuildType2Memory(make([]byte, 0x10000))
	require.ErrorIs(t, err, ErrTagWriteFailed)
}

func TestParseType2MemoryRoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 100, 254, 255, 300} {
		message := make([]byte, size)
		for i := range message {
			message[i] = byte(i + 1)
		}

		cc, tlv, err := BuildType2Memory(message)
		require.NoError(t, err)

		got, parsedCC, err := ParseType2Memory(cc, tlv)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, message, append([]byte{}, got...), "size %d", size)
		assert.Equal(t, Type2Capacity, parsedCC.DataAreaSize())
	}
}

func TestParseType2MemorySkipsLeadingTLVs(t *testing.T) {
	t.Parallel()

	// Lock-control TLV (0x01) and null padding ahead of the NDEF block,
	// the layout NTAGs formatted by phones actually have.
	tlv := []byte{
		0x01, 0x03, 0xA0, 0x10, 0x44, // lock control
		0x00, 0x00, // null padding
		0x03, 0x02, 0xD0, 0x00, // NDEF TLV
		0xFE,
	}
	got, _, err := ParseType2Memory(BuildType2CC(144), tlv)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD0, 0x00}, got)
}

func TestParseType2MemoryNoNDEF(t *testing.T) {
	t.Parallel()

	cc := BuildType2CC(144)

	// Terminator before any NDEF block.
	_, _, err := ParseType2Memory(cc, []byte{0x00, 0xFE, 0x03, 0x01, 0xD0})
	require.ErrorIs(t, err, ErrNoNDEFTLV)

	// Nothing but padding.
	_, _, err = ParseType2Memory(cc, []byte{0x00, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, ErrNoNDEFTLV)

	// Empty data area.
	_, _, err = ParseType2Memory(cc, nil)
	require.ErrorIs(t, err, ErrNoNDEFTLV)
}

func TestParseType2MemoryTruncated(t *testing.T) {
	t.Parallel()

	cc := BuildType2CC(144)

	// Declared length exceeds the buffer.
	_, _, err := ParseType2Memory(cc, []byte{0x03, 0x10, 0xD0})
	require.ErrorIs(t, err, ErrTruncatedTLV)

	// Length byte missing.
	_, _, err = ParseType2Memory(cc, []byte{0x03})
	require.ErrorIs(t, err, ErrTruncatedTLV)

	// Long form cut off mid-length.
	_, _, err = ParseType2Memory(cc, []byte{0x03, 0xFF, 0x01})
	require.ErrorIs(t, err, ErrTruncatedTLV)
}

func TestParseType2MemoryBadCCFailsFast(t *testing.T) {
	t.Parallel()

	_, _, err := ParseType2Memory([]byte{0x00, 0x10, 0x12, 0x00}, []byte{0x03, 0x01, 0xD0, 0xFE})
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestParseType2MemoryGarbage(t *testing.T) {
	t.Parallel()

	cc := BuildType2CC(144)
	patterns := []byte{0x00, 0xFF, 0xA5, 0x03}
	for _, p := range patterns {
		for size := 0; size <= 64; size++ {
			buf := make([]byte, size)
			for i := range buf {
				buf[i] = p ^ byte(i*7)
			}
			// Must never panic; any error is acceptable.
			_, _, _ = ParseType2Memory(cc, buf)
		}
	}
}

func TestPlanPageWrites(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	writes := PlanPageWrites(4, data)
	require.Len(t, writes, 4)

	assert.Equal(t, 4, writes[0].Page)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, writes[0].Data)
	assert.Equal(t, 7, writes[3].Page)
	assert.Equal(t, [4]byte{13, 0, 0, 0}, writes[3].Data)
}

func TestPlanPageWritesEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, PlanPageWrites(4, nil))
}

func TestPlanPageReads(t *testing.T) {
	t.Parallel()

	reads := PlanPageReads(4, 33)
	assert.Equal(t, []int{4, 8, 12, 16, 20, 24, 28, 32, 36}, reads)

	assert.Equal(t, []int{3}, PlanPageReads(3, 1))
	assert.Equal(t, []int{0, 4}, PlanPageReads(0, 8))
}
