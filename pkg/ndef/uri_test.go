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

package ndef

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeURIPrefixSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		url        string
		wantCode   byte
		wantSuffix string
	}{
		{
			name:       "http www prefix",
			url:        "http://www.example.com",
			wantCode:   0x01,
			wantSuffix: "example.com",
		},
		{
			name:       "https www preferred over https",
			url:        "https://www.a.com",
			wantCode:   0x02,
			wantSuffix: "a.com",
		},
		{
			name:       "http prefix",
			url:        "http://printer.local:7125",
			wantCode:   0x03,
			wantSuffix: "printer.local:7125",
		},
		{
			name:       "https prefix",
			url:        "https://example.local",
			wantCode:   0x04,
			wantSuffix: "example.local",
		},
		{
			name:       "no matching prefix",
			url:        "ftp://files.local",
			wantCode:   0x00,
			wantSuffix: "ftp://files.local",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record, err := EncodeURI(tt.url)
			require.NoError(t, err)

			// Header, type length, payload length, type byte.
			assert.Equal(t, byte(0xD1), record[0])
			assert.Equal(t, byte(0x01), record[1])
			assert.Equal(t, byte(1+len(tt.wantSuffix)), record[2])
			assert.Equal(t, byte(URIRecordType), record[3])
			assert.Equal(t, tt.wantCode, record[4])
			assert.Equal(t, tt.wantSuffix, string(record[5:]))
		})
	}
}

func TestEncodeURIRoundTrip(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://www.example.local:7125",
		"http://192.168.1.50:7125",
		"https://printer.local",
		"http://www.voron.local:80",
		"gemini://no.known.prefix",
	}

	for _, url := range urls {
		record, err := EncodeURI(url)
		require.NoError(t, err)

		decoded, err := DecodeURIString(record)
		require.NoError(t, err)
		assert.Equal(t, url, decoded)
	}
}

func TestEncodeURIRoundTripExample(t *testing.T) {
	t.Parallel()

	record, err := EncodeURI("https://www.example.local:7125")
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), record[4])
	assert.Equal(t, "example.local:7125", string(record[5:]))

	rec, err := DecodeURI(record)
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.local:7125", rec.URI())
}

func TestEncodeURITooLong(t *testing.T) {
	t.Parallel()

	// 254-byte suffix is the limit: payload = code + suffix = 255.
	limit := "https://" + strings.Repeat("a", 254)
	_, err := EncodeURI(limit)
	require.NoError(t, err)

	_, err = EncodeURI(limit + "a")
	require.ErrorIs(t, err, ErrRecordTooLong)
}

func TestDecodeURIValidation(t *testing.T) {
	t.Parallel()

	valid, err := EncodeURI("https://example.com")
	require.NoError(t, err)

	tests := []struct {
		wantErr error
		mutate  func([]byte) []byte
		name    string
	}{
		{
			name:    "too short",
			mutate:  func(b []byte) []byte { return b[:4] },
			wantErr: ErrMalformedRecord,
		},
		{
			name: "wrong TNF",
			mutate: func(b []byte) []byte {
				b[0] = 0xD2 // TNF = MIME media
				return b
			},
			wantErr: ErrMalformedRecord,
		},
		{
			name: "wrong record type",
			mutate: func(b []byte) []byte {
				b[3] = 0x54 // 'T' text record
				return b
			},
			wantErr: ErrMalformedRecord,
		},
		{
			name: "payload longer than buffer",
			mutate: func(b []byte) []byte {
				b[2] = byte(len(b)) // declares more than remains
				return b
			},
			wantErr: ErrTruncatedRecord,
		},
		{
			name: "zero payload length",
			mutate: func(b []byte) []byte {
				b[2] = 0x00
				return b
			},
			wantErr: ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := make([]byte, len(valid))
			copy(record, valid)

			_, err := DecodeURI(tt.mutate(record))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeURIUnknownPrefixCode(t *testing.T) {
	t.Parallel()

	record, err := EncodeURI("https://example.com")
	require.NoError(t, err)
	record[4] = 0x23 // urn:nfc: in the full RTD table, unknown to this codec

	rec, err := DecodeURI(record)
	require.NoError(t, err)
	assert.False(t, rec.KnownPrefix())
	assert.Equal(t, "example.com", rec.URI())
}

func TestDecodeURITrailingBytesIgnored(t *testing.T) {
	t.Parallel()

	record, err := EncodeURI("http://a.b")
	require.NoError(t, err)
	record = append(record, 0xFE, 0x00, 0x00)

	decoded, err := DecodeURIString(record)
	require.NoError(t, err)
	assert.Equal(t, "http://a.b", decoded)
}

// TestDecodeURIGarbage feeds truncated and garbage buffers of every length
// up to 20 bytes; the decoder must reject or decode without panicking.
func TestDecodeURIGarbage(t *testing.T) {
	t.Parallel()

	for size := 0; size < 21; size++ {
		buf := make([]byte, size)
		for i := range buf {
			buf[i] = byte(i*37 + 11)
		}
		_, _ = DecodeURI(buf)

		// All 0xFF and all 0x00 variants.
		for i := range buf {
			buf[i] = 0xFF
		}
		_, _ = DecodeURI(buf)
		for i := range buf {
			buf[i] = 0x00
		}
		_, _ = DecodeURI(buf)
	}
}
