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
	"encoding/binary"
	"fmt"
)

// TLV type constants per NFC Forum Type 2 Tag specification
const (
	TLVTypeNull       = 0x00 // padding byte, no length field
	TLVTypeNDEF       = 0x03 // NDEF Message TLV
	TLVTypeTerminator = 0xFE // end of data area, no length field
)

// Type 2 tag layout constants. The capability container sits at page 3 on
// every NTAG/Ultralight model; the TLV data area starts at page 4.
const (
	// Type2CCPage is the page holding the capability container.
	Type2CCPage = 3
	// Type2DataPage is the first page of the TLV data area.
	Type2DataPage = 4
	// Type2Capacity is the NTAG213 data area capacity in bytes.
	Type2Capacity = 144
	// DefaultReadWindowPages is the generous fixed page window fetched on
	// reads. 33 pages covers the largest message this module writes with
	// margin; the CC-declared size is reported but deliberately not used
	// to bound the read.
	DefaultReadWindowPages = 33
)

// PageWrite is one page-aligned write operation.
type PageWrite struct {
	Data [Type2PageSize]byte
	Page int
}

// BuildType2Memory encodes an NDEF message as a Type 2 memory image: the
// 4-byte capability container and the TLV data area. The TLV region is the
// NDEF Message TLV (long length form past 254 bytes), a terminator, and
// zero padding to the next page boundary.
func BuildType2Memory(ndefMessage []byte) (cc, tlv []byte, err error) {
	if len(ndefMessage) > 0xFFFF {
		return nil, nil, fmt.Errorf("%w: NDEF message of %d bytes", ErrTagWriteFailed, len(ndefMessage))
	}

	tlv = make([]byte, 0, 4+len(ndefMessage)+Type2PageSize)
	if len(ndefMessage) < 0xFF {
		tlv = append(tlv, TLVTypeNDEF, byte(len(ndefMessage)))
	} else {
		tlv = append(tlv, TLVTypeNDEF, 0xFF, byte(len(ndefMessage)>>8), byte(len(ndefMessage)))
	}
	tlv = append(tlv, ndefMessage...)
	tlv = append(tlv, TLVTypeTerminator)
	for len(tlv)%Type2PageSize != 0 {
		tlv = append(tlv, 0x00)
	}

	return BuildType2CC(Type2Capacity), tlv, nil
}

// ParseType2Memory recovers the NDEF message from a Type 2 memory image.
// The capability container is parsed first and fails fast on a bad magic;
// the TLV walk then returns the first NDEF Message TLV.
//
// Unknown TLV tags are skipped by treating the following byte as their
// length. This best-effort recovery is load-bearing: tags written by other
// software carry lock-control and proprietary TLVs ahead of the NDEF block.
func ParseType2Memory(ccBytes, tlvBytes []byte) ([]byte, CapabilityContainer, error) {
	cc, err := ParseType2CC(ccBytes)
	if err != nil {
		return nil, CapabilityContainer{}, err
	}

	offset := 0
	for offset < len(tlvBytes) {
		switch tlvBytes[offset] {
		case TLVTypeNull:
			offset++

		case TLVTypeTerminator:
			return nil, cc, ErrNoNDEFTLV

		case TLVTypeNDEF:
			ndef, err := readNDEFTLV(tlvBytes, offset)
			if err != nil {
				return nil, cc, err
			}
			return ndef, cc, nil

		default:
			Debugf("skipping unknown TLV tag 0x%02X at offset %d", tlvBytes[offset], offset)
			if offset+1 >= len(tlvBytes) {
				return nil, cc, ErrNoNDEFTLV
			}
			offset += 2 + int(tlvBytes[offset+1])
		}
	}

	return nil, cc, ErrNoNDEFTLV
}

// readNDEFTLV decodes the NDEF Message TLV at offset, handling the 0xFF
// long-length escape.
func readNDEFTLV(data []byte, offset int) ([]byte, error) {
	if offset+1 >= len(data) {
		return nil, ErrTruncatedTLV
	}

	length := int(data[offset+1])
	start := offset + 2
	if data[offset+1] == 0xFF {
		if offset+3 >= len(data) {
			return nil, fmt.Errorf("%w: incomplete long length at offset %d", ErrTruncatedTLV, offset)
		}
		length = int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		start = offset + 4
	}

	if start+length > len(data) {
		return nil, fmt.Errorf("%w: %d bytes declared, %d remain", ErrTruncatedTLV, length, len(data)-start)
	}
	return data[start : start+length], nil
}

// PlanPageWrites slices data into consecutive page writes starting at
// startPage, zero-padding the final page.
func PlanPageWrites(startPage int, data []byte) []PageWrite {
	writes := make([]PageWrite, 0, (len(data)+Type2PageSize-1)/Type2PageSize)
	for i := 0; i < len(data); i += Type2PageSize {
		w := PageWrite{Page: startPage + i/Type2PageSize}
		copy(w.Data[:], data[i:min(i+Type2PageSize, len(data))])
		writes = append(writes, w)
	}
	return writes
}

// PlanPageReads returns the page numbers at which READ commands must be
// issued to cover pageCount pages starting at startPage. Each READ returns
// 16 bytes (4 pages), so the plan is the minimum set of 4-page strides; the
// caller truncates the assembled buffer to pageCount*4 bytes to discard the
// final command's overrun.
func PlanPageReads(startPage, pageCount int) []int {
	const pagesPerRead = type2ReadChunk / Type2PageSize

	reads := make([]int, 0, (pageCount+pagesPerRead-1)/pagesPerRead)
	for page := startPage; page < startPage+pageCount; page += pagesPerRead {
		reads = append(reads, page)
	}
	return reads
}
