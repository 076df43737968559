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
	"errors"
	"fmt"

	"github.com/hsanjuan/go-ndef"

	klippyndef "github.com/erikbuild/klippyNFC/pkg/ndef"
)

// RecordKind identifies the interpreted type of a parsed record.
type RecordKind string

const (
	RecordKindURI     RecordKind = "uri"
	RecordKindText    RecordKind = "text"
	RecordKindUnknown RecordKind = "unknown"
)

// ParsedRecord is one record of an NDEF message read off a tag, with
// well-known payloads already interpreted.
type ParsedRecord struct {
	Kind    RecordKind
	Type    string // raw record type, e.g. "U", "T", or a media type
	URI     string // set when Kind is RecordKindURI
	Text    string // set when Kind is RecordKindText
	Payload []byte
}

// ParsedMessage is the interpreted content of an NDEF message.
type ParsedMessage struct {
	Records []ParsedRecord
}

// FirstURI returns the first URI record in the message, or "".
func (m *ParsedMessage) FirstURI() string {
	for i := range m.Records {
		if m.Records[i].Kind == RecordKindURI {
			return m.Records[i].URI
		}
	}
	return ""
}

// ParseMessage parses a raw NDEF message (the TLV payload, wrapper already
// stripped). Records it cannot interpret are kept with Kind unknown rather
// than dropped, so callers can still see what a tag holds.
func ParseMessage(data []byte) (*ParsedMessage, error) {
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}
	if len(msg.Records) == 0 {
		return nil, fmt.Errorf("%w: message has no records", ErrInvalidResponse)
	}

	result := &ParsedMessage{Records: make([]ParsedRecord, 0, len(msg.Records))}
	for _, rec := range msg.Records {
		result.Records = append(result.Records, convertRecord(rec))
	}
	return result, nil
}

func convertRecord(rec *ndef.Record) ParsedRecord {
	out := ParsedRecord{Kind: RecordKindUnknown, Type: rec.Type()}

	payload, err := rec.Payload()
	if err != nil {
		Debugf("cannot decode record payload: %v", err)
		return out
	}
	out.Payload = payload.Marshal()

	if rec.TNF() != ndef.NFCForumWellKnownType {
		return out
	}
	switch rec.Type() {
	case "U":
		if uri, err := decodeURIPayload(out.Payload); err == nil {
			out.Kind = RecordKindURI
			out.URI = uri
		}
	case "T":
		if text, err := decodeTextPayload(out.Payload); err == nil {
			out.Kind = RecordKindText
			out.Text = text
		}
	}
	return out
}

// decodeURIPayload expands a URI record payload (prefix code + suffix).
func decodeURIPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errors.New("URI payload too short")
	}
	rec := klippyndef.URIRecord{PrefixCode: payload[0], Suffix: string(payload[1:])}
	return rec.URI(), nil
}

// decodeTextPayload strips the status byte and language code from a text
// record payload.
func decodeTextPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errors.New("text payload too short")
	}
	langLen := int(payload[0] & 0x3F)
	if len(payload) < 1+langLen {
		return "", errors.New("invalid text payload length")
	}
	return string(payload[1+langLen:]), nil
}
