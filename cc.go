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

import "fmt"

// Byte-exact NDEF application constants shared by both tag protocols.
var (
	// ndefAID is the NDEF Tag Application identifier selected by phones.
	ndefAID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}
	// ccFileID identifies the Type 4 capability container file.
	ccFileID = []byte{0xE1, 0x03}
	// ndefFileID identifies the Type 4 NDEF message file.
	ndefFileID = []byte{0xE1, 0x04}
)

// ndefMagic is the Type 2 capability container magic number.
const ndefMagic = 0xE1

// Type 4 CC field constants. MLe/MLc match the values the original PN532
// target firmware handles reliably; larger values provoke frame overruns
// on TgSetData.
const (
	type4CCLen       = 0x000F
	type4MapVersion  = 0x20 // mapping version 2.0
	type4MaxRead     = 0x003B
	type4MaxWrite    = 0x0034
	type4ReadAccess  = 0x00 // free
	type4WriteAccess = 0xFF // emulated tags are read-only to the initiator
)

// Type 2 CC field constants.
const (
	type2MapVersion = 0x10 // mapping version 1.0
	type2Access     = 0x00 // free read, free write
)

// CapabilityContainer holds the fields recovered from a Type 2 capability
// container page.
type CapabilityContainer struct {
	// Version is the mapping version byte, major in the high nibble.
	Version byte
	// SizeByte encodes the data area size in units of 8 bytes.
	SizeByte byte
	// Access packs read access in the high nibble and write access in the
	// low nibble; 0 means free.
	Access byte
}

// DataAreaSize returns the declared TLV data area size in bytes.
func (cc CapabilityContainer) DataAreaSize() int {
	return int(cc.SizeByte) * 8
}

// ReadAccess returns the read access nibble (0 = free).
func (cc CapabilityContainer) ReadAccess() byte { return cc.Access >> 4 }

// WriteAccess returns the write access nibble (0 = free, 0xF = none).
func (cc CapabilityContainer) WriteAccess() byte { return cc.Access & 0x0F }

func (cc CapabilityContainer) String() string {
	return fmt.Sprintf("CC v%d.%d, %d bytes, access %02X",
		cc.Version>>4, cc.Version&0x0F, cc.DataAreaSize(), cc.Access)
}

// BuildType4CC builds the 15-byte Type 4 capability container file.
// ndefFileSize is the size of the NDEF file including its 2-byte length
// prefix; it becomes the maximum NDEF size field, so the invariant
// "max size >= actual size" holds by construction.
func BuildType4CC(ndefFileSize int) []byte {
	return []byte{
		byte(type4CCLen >> 8), byte(type4CCLen), // CCLEN
		type4MapVersion,
		byte(type4MaxRead >> 8), byte(type4MaxRead), // MLe
		byte(type4MaxWrite >> 8), byte(type4MaxWrite), // MLc
		0x04, 0x06, // NDEF File Control TLV: tag, length
		ndefFileID[0], ndefFileID[1],
		byte(ndefFileSize >> 8), byte(ndefFileSize),
		type4ReadAccess,
		type4WriteAccess,
	}
}

// BuildType2CC builds the 4-byte Type 2 capability container for a tag with
// the given data area capacity in bytes. Capacity is a per-tag-model
// constant (144 for NTAG213) and must be a multiple of 8.
func BuildType2CC(capacity int) []byte {
	return []byte{ndefMagic, type2MapVersion, byte(capacity / 8), type2Access}
}

// ParseType2CC decodes a Type 2 capability container page. Only the magic
// byte is validated; an unexpected mapping version is informational, since
// tags in the field report versions this codec has never heard of and read
// fine regardless.
func ParseType2CC(data []byte) (CapabilityContainer, error) {
	if len(data) < 4 {
		return CapabilityContainer{}, fmt.Errorf("%w: %d bytes", ErrInvalidMagic, len(data))
	}
	if data[0] != ndefMagic {
		return CapabilityContainer{}, fmt.Errorf("%w: 0x%02X", ErrInvalidMagic, data[0])
	}

	cc := CapabilityContainer{
		Version:  data[1],
		SizeByte: data[2],
		Access:   data[3],
	}
	if cc.Version != type2MapVersion {
		Debugf("unexpected CC mapping version 0x%02X", cc.Version)
	}
	return cc, nil
}
