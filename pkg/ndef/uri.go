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

// Package ndef implements the NDEF URI record codec used for tag payloads.
//
// Only the short-record form is supported: the records written and emulated
// by this module always fit in a single short record, and phones reading a
// URL tag expect exactly that shape.
package ndef

import (
	"errors"
	"strings"
)

// URI record framing constants per the NFC Forum URI RTD.
const (
	// uriRecordHeader is TNF=Well-Known with MB, ME and SR flags set.
	uriRecordHeader = 0xD1
	// URIRecordType is the well-known record type byte 'U'.
	URIRecordType = 0x55

	tnfMask      = 0x07
	tnfWellKnown = 0x01

	// minRecordLen is header + type length + payload length + type + prefix code.
	minRecordLen = 5

	// maxPayloadLen is the short-record payload ceiling (one length byte).
	maxPayloadLen = 255
)

// URI record errors.
var (
	// ErrRecordTooLong indicates the encoded payload exceeds the
	// short-record ceiling of 255 bytes.
	ErrRecordTooLong = errors.New("ndef: URI too long for short record")
	// ErrMalformedRecord indicates the bytes are not a well-known URI record.
	ErrMalformedRecord = errors.New("ndef: malformed URI record")
	// ErrTruncatedRecord indicates the record declares more payload than the
	// buffer holds.
	ErrTruncatedRecord = errors.New("ndef: truncated URI record")
)

// uriPrefixes maps abbreviation codes to URI prefixes. Order matters:
// encoding checks entries first to last, so "https://www." is preferred
// over "https://" for URLs that match both.
var uriPrefixes = []struct {
	prefix string
	code   byte
}{
	{"http://www.", 0x01},
	{"https://www.", 0x02},
	{"http://", 0x03},
	{"https://", 0x04},
}

// URIRecord is a decoded NDEF URI record.
type URIRecord struct {
	// Suffix is the URI with the abbreviated prefix stripped.
	Suffix string
	// PrefixCode is the prefix abbreviation byte from the payload.
	PrefixCode byte
}

// URI reconstructs the full URI. Unknown prefix codes resolve to an empty
// prefix; callers can detect that case with KnownPrefix.
func (r URIRecord) URI() string {
	return prefixString(r.PrefixCode) + r.Suffix
}

// KnownPrefix reports whether the record's prefix code is one this codec
// understands. A false return is a warning condition, not an error: the
// suffix is still usable as a best-effort URI.
func (r URIRecord) KnownPrefix() bool {
	return r.PrefixCode == 0x00 || prefixString(r.PrefixCode) != ""
}

func prefixString(code byte) string {
	for _, p := range uriPrefixes {
		if p.code == code {
			return p.prefix
		}
	}
	return ""
}

// EncodeURI encodes a URL as a single short NDEF URI record.
//
// The longest matching well-known prefix is abbreviated to one byte; URLs
// matching none are stored verbatim with code 0x00. Returns ErrRecordTooLong
// if the payload would not fit the short-record form.
func EncodeURI(url string) ([]byte, error) {
	code := byte(0x00)
	suffix := url
	for _, p := range uriPrefixes {
		if strings.HasPrefix(url, p.prefix) {
			code = p.code
			suffix = url[len(p.prefix):]
			break
		}
	}

	payloadLen := 1 + len(suffix)
	if payloadLen > maxPayloadLen {
		return nil, ErrRecordTooLong
	}

	record := make([]byte, 0, 4+payloadLen)
	record = append(record, uriRecordHeader, 0x01, byte(payloadLen), URIRecordType, code)
	record = append(record, suffix...)
	return record, nil
}

// DecodeURI decodes a single short NDEF URI record produced by EncodeURI or
// by any conforming writer. The declared payload length is honored: a buffer
// shorter than declared fails with ErrTruncatedRecord, and trailing bytes
// beyond the record are ignored.
func DecodeURI(data []byte) (URIRecord, error) {
	if len(data) < minRecordLen {
		return URIRecord{}, ErrMalformedRecord
	}
	if data[0]&tnfMask != tnfWellKnown {
		return URIRecord{}, ErrMalformedRecord
	}
	if data[3] != URIRecordType {
		return URIRecord{}, ErrMalformedRecord
	}

	payloadLen := int(data[2])
	if payloadLen < 1 {
		return URIRecord{}, ErrMalformedRecord
	}
	if 4+payloadLen > len(data) {
		return URIRecord{}, ErrTruncatedRecord
	}

	return URIRecord{
		PrefixCode: data[4],
		Suffix:     string(data[5 : 4+payloadLen]),
	}, nil
}

// DecodeURIString is a convenience wrapper that decodes straight to the full
// URI string.
func DecodeURIString(data []byte) (string, error) {
	rec, err := DecodeURI(data)
	if err != nil {
		return "", err
	}
	return rec.URI(), nil
}
