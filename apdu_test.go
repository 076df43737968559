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

var (
	apduSelectAID  = []byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00}
	apduSelectCC   = []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x03}
	apduSelectNDEF = []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x04}
)

func readBinary(offset int, length byte) []byte {
	return []byte{0x00, 0xB0, byte(offset >> 8), byte(offset), length}
}

func sw(t *testing.T, response []byte) uint16 {
	t.Helper()
	require.GreaterOrEqual(t, len(response), 2)
	return uint16(response[len(response)-2])<<8 | uint16(response[len(response)-1])
}

func handle(t *testing.T, e *Type4Engine, raw []byte) []byte {
	t.Helper()
	response, err := e.Handle(raw)
	require.NoError(t, err)
	return response
}

func TestParseAPDUTooShort(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, {}, {0x00}, {0x00, 0xA4}, {0x00, 0xA4, 0x04}} {
		_, err := ParseAPDU(raw)
		assert.ErrorIs(t, err, ErrAPDUTooShort)
	}

	cmd, err := ParseAPDU([]byte{0x00, 0xB0, 0x00, 0x05})
	require.NoError(t, err)
	assert.Equal(t, byte(0xB0), cmd.INS)
	assert.Empty(t, cmd.Data)
}

func TestType4EngineFullReadSequence(t *testing.T) {
	t.Parallel()

	message := []byte{0xD1, 0x01, 0x08, 0x55, 0x04, 'a', '.', 'c', 'o', '.', 'u', 'k'}
	engine := NewType4Engine(message)

	// Application select leaves no file selected.
	assert.Equal(t, SWSuccess, sw(t, handle(t, engine, apduSelectAID)))
	assert.Equal(t, FileNone, engine.Selected())

	// CC select and read.
	assert.Equal(t, SWSuccess, sw(t, handle(t, engine, apduSelectCC)))
	assert.Equal(t, FileCC, engine.Selected())
	res := handle(t, engine, readBinary(0, 15))
	assert.Equal(t, SWSuccess, sw(t, res))
	assert.Equal(t, BuildType4CC(len(message)+2), res[:len(res)-2])

	// NDEF select, length read, then body read at the advertised length.
	assert.Equal(t, SWSuccess, sw(t, handle(t, engine, apduSelectNDEF)))
	res = handle(t, engine, readBinary(0, 2))
	assert.Equal(t, SWSuccess, sw(t, res))
	assert.Equal(t, []byte{0x00, byte(len(message))}, res[:2])

	res = handle(t, engine, readBinary(2, byte(len(message))))
	assert.Equal(t, SWSuccess, sw(t, res))
	assert.Equal(t, message, res[:len(res)-2])
}

func TestType4EngineChunkedNDEFRead(t *testing.T) {
	t.Parallel()

	message := make([]byte, 100)
	for i := range message {
		message[i] = byte(i)
	}
	engine := NewType4Engine(message)
	handle(t, engine, apduSelectAID)
	handle(t, engine, apduSelectNDEF)

	var got []byte
	for offset := 2; offset < len(message)+2; offset += 30 {
		res := handle(t, engine, readBinary(offset, 30))
		require.Equal(t, SWSuccess, sw(t, res))
		got = append(got, res[:len(res)-2]...)
	}
	assert.Equal(t, message, got)
}

func TestType4EngineSelectErrors(t *testing.T) {
	t.Parallel()

	engine := NewType4Engine([]byte{0x01})

	// Wrong AID.
	wrongAID := []byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x02, 0x00}
	assert.Equal(t, SWFileNotFound, sw(t, handle(t, engine, wrongAID)))

	// Unknown file ID leaves the cursor untouched.
	handle(t, engine, apduSelectCC)
	unknownFile := []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x05}
	assert.Equal(t, SWFileNotFound, sw(t, handle(t, engine, unknownFile)))
	assert.Equal(t, FileCC, engine.Selected())

	// Length field overruns the command.
	truncated := []byte{0x00, 0xA4, 0x00, 0x0C, 0x07, 0xE1}
	assert.Equal(t, SWWrongLength, sw(t, handle(t, engine, truncated)))

	// Missing length field entirely.
	empty := []byte{0x00, 0xA4, 0x04, 0x00}
	assert.Equal(t, SWWrongLength, sw(t, handle(t, engine, empty)))

	// Unsupported P1.
	badP1 := []byte{0x00, 0xA4, 0x09, 0x00, 0x02, 0xE1, 0x03}
	assert.Equal(t, SWIncorrectParameters, sw(t, handle(t, engine, badP1)))
}

func TestType4EngineReadBeforeSelect(t *testing.T) {
	t.Parallel()

	engine := NewType4Engine([]byte{0x01, 0x02})
	assert.Equal(t, SWCommandNotAllowed, sw(t, handle(t, engine, readBinary(0, 2))))

	// Selecting only the application is not enough.
	handle(t, engine, apduSelectAID)
	assert.Equal(t, SWCommandNotAllowed, sw(t, handle(t, engine, readBinary(0, 2))))
}

func TestType4EngineReadOffsets(t *testing.T) {
	t.Parallel()

	message := []byte{0xAA, 0xBB, 0xCC}
	engine := NewType4Engine(message)
	handle(t, engine, apduSelectNDEF)

	// Offset at exactly the file size is out of range. File is len+2.
	assert.Equal(t, SWWrongOffset, sw(t, handle(t, engine, readBinary(5, 1))))
	assert.Equal(t, SWWrongOffset, sw(t, handle(t, engine, readBinary(100, 1))))

	// Overrunning length is clamped, not an error.
	res := handle(t, engine, readBinary(3, 0xFF))
	assert.Equal(t, SWSuccess, sw(t, res))
	assert.Equal(t, []byte{0xBB, 0xCC}, res[:len(res)-2])
}

func TestType4EngineUnsupportedInstruction(t *testing.T) {
	t.Parallel()

	engine := NewType4Engine([]byte{0x01})
	// UPDATE BINARY is not served; emulated tags are read-only.
	update := []byte{0x00, 0xD6, 0x00, 0x00, 0x01, 0xFF}
	assert.Equal(t, SWInsNotSupported, sw(t, handle(t, engine, update)))
}

func TestType4EngineReset(t *testing.T) {
	t.Parallel()

	engine := NewType4Engine([]byte{0x01})
	handle(t, engine, apduSelectNDEF)
	require.Equal(t, FileNDEF, engine.Selected())

	engine.Reset()
	assert.Equal(t, FileNone, engine.Selected())
	assert.Equal(t, SWCommandNotAllowed, sw(t, handle(t, engine, readBinary(0, 1))))
}
