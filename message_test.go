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

	"github.com/erikbuild/klippyNFC/pkg/ndef"
)

func TestParseMessageURI(t *testing.T) {
	t.Parallel()

	record, err := ndef.EncodeURI("https://www.example.local:7125")
	require.NoError(t, err)

	msg, err := ParseMessage(record)
	require.NoError(t, err)
	require.Len(t, msg.Records, 1)

	assert.Equal(t, RecordKindURI, msg.Records[0].Kind)
	assert.Equal(t, "https://www.example.local:7125", msg.Records[0].URI)
	assert.Equal(t, "https://www.example.local:7125", msg.FirstURI())
}

func TestParseMessageText(t *testing.T) {
	t.Parallel()

	// Well-known text record: status byte 0x02, language "en".
	payload := append([]byte{0x02, 'e', 'n'}, []byte("hello")...)
	raw := append([]byte{0xD1, 0x01, byte(len(payload)), 0x54}, payload...)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Len(t, msg.Records, 1)

	assert.Equal(t, RecordKindText, msg.Records[0].Kind)
	assert.Equal(t, "hello", msg.Records[0].Text)
	assert.Empty(t, msg.FirstURI())
}

func TestParseMessageGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseMessage(nil)
	require.Error(t, err)

	_, err = ParseMessage([]byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
}
