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

import "bytes"

// ISO7816 instruction bytes handled by the Type 4 engine
const (
	insSelect     = 0xA4
	insReadBinary = 0xB0
)

// SELECT P1 values
const (
	selectByAID    = 0x04
	selectByFileID = 0x00
)

// ISO7816 status words. This is a closed set: the engine never emits any
// other value.
const (
	SWSuccess             uint16 = 0x9000
	SWFileNotFound        uint16 = 0x6A82
	SWWrongLength         uint16 = 0x6700
	SWWrongOffset         uint16 = 0x6B00
	SWCommandNotAllowed   uint16 = 0x6986
	SWInsNotSupported     uint16 = 0x6D00
	SWIncorrectParameters uint16 = 0x6A86
)

// SelectedFile is the Type 4 engine's session-scoped file cursor.
type SelectedFile int

const (
	// FileNone means no file has been selected yet this activation.
	FileNone SelectedFile = iota
	// FileCC selects the capability container file.
	FileCC
	// FileNDEF selects the NDEF message file.
	FileNDEF
)

func (f SelectedFile) String() string {
	switch f {
	case FileCC:
		return "CC"
	case FileNDEF:
		return "NDEF"
	default:
		return "none"
	}
}

// APDUCommand is a parsed command APDU header plus its trailing bytes.
type APDUCommand struct {
	Data []byte // bytes after the 4-byte header (Lc, payload, Le)
	CLA  byte
	INS  byte
	P1   byte
	P2   byte
}

// ParseAPDU splits a raw command APDU. Commands shorter than the 4-byte
// header are rejected with ErrAPDUTooShort before any dispatch; the serve
// loop logs those and keeps waiting rather than answering with a status
// word.
func ParseAPDU(raw []byte) (APDUCommand, error) {
	if len(raw) < 4 {
		return APDUCommand{}, ErrAPDUTooShort
	}
	return APDUCommand{
		CLA:  raw[0],
		INS:  raw[1],
		P1:   raw[2],
		P2:   raw[3],
		Data: raw[4:],
	}, nil
}

// Type4Engine answers the SELECT / READ BINARY command sequence a phone
// issues against an NFC Forum Type 4 tag. It serves two read-only virtual
// files: the capability container and the length-prefixed NDEF message.
type Type4Engine struct {
	cc       []byte
	ndefFile []byte
	selected SelectedFile
}

// NewType4Engine builds an engine serving the given NDEF message. The NDEF
// file is the message prefixed with its 2-byte big-endian length, and the
// CC advertises exactly that file size.
func NewType4Engine(ndefMessage []byte) *Type4Engine {
	ndefFile := make([]byte, 0, 2+len(ndefMessage))
	ndefFile = append(ndefFile, byte(len(ndefMessage)>>8), byte(len(ndefMessage)))
	ndefFile = append(ndefFile, ndefMessage...)

	return &Type4Engine{
		cc:       BuildType4CC(len(ndefFile)),
		ndefFile: ndefFile,
		selected: FileNone,
	}
}

// Reset clears the file cursor. Call at the start of each activation.
func (e *Type4Engine) Reset() {
	e.selected = FileNone
}

// Selected returns the current file cursor.
func (e *Type4Engine) Selected() SelectedFile {
	return e.selected
}

// Handle consumes one raw command APDU and produces the response APDU.
// The only error it returns is ErrAPDUTooShort; every other condition maps
// to a status word in the response.
func (e *Type4Engine) Handle(raw []byte) ([]byte, error) {
	cmd, err := ParseAPDU(raw)
	if err != nil {
		return nil, err
	}

	switch cmd.INS {
	case insSelect:
		return e.handleSelect(cmd), nil
	case insReadBinary:
		return e.handleReadBinary(cmd), nil
	default:
		Debugf("unsupported INS 0x%02X", cmd.INS)
		return statusResponse(SWInsNotSupported), nil
	}
}

func (e *Type4Engine) handleSelect(cmd APDUCommand) []byte {
	switch cmd.P1 {
	case selectByAID:
		target, ok := selectField(cmd.Data)
		if !ok {
			return statusResponse(SWWrongLength)
		}
		if !bytes.Equal(target, ndefAID) {
			Debugf("unknown AID %X", target)
			return statusResponse(SWFileNotFound)
		}
		// AID selection is a precondition, not a file-cursor move.
		return statusResponse(SWSuccess)

	case selectByFileID:
		target, ok := selectField(cmd.Data)
		if !ok {
			return statusResponse(SWWrongLength)
		}
		switch {
		case bytes.Equal(target, ccFileID):
			e.selected = FileCC
		case bytes.Equal(target, ndefFileID):
			e.selected = FileNDEF
		default:
			Debugf("unknown file ID %X", target)
			return statusResponse(SWFileNotFound)
		}
		return statusResponse(SWSuccess)

	default:
		Debugf("unsupported SELECT P1 0x%02X", cmd.P1)
		return statusResponse(SWIncorrectParameters)
	}
}

// selectField extracts the length-prefixed AID or file ID from the bytes
// following the SELECT header. ok is false when the length field is missing
// or overruns the buffer.
func selectField(data []byte) ([]byte, bool) {
	if len(data) < 1 {
		return nil, false
	}
	fieldLen := int(data[0])
	if len(data) < 1+fieldLen {
		return nil, false
	}
	return data[1 : 1+fieldLen], true
}

func (e *Type4Engine) handleReadBinary(cmd APDUCommand) []byte {
	var source []byte
	switch e.selected {
	case FileCC:
		source = e.cc
	case FileNDEF:
		source = e.ndefFile
	default:
		return statusResponse(SWCommandNotAllowed)
	}

	offset := int(cmd.P1)<<8 | int(cmd.P2)
	length := 0
	if len(cmd.Data) > 0 {
		length = int(cmd.Data[0])
	}

	if offset >= len(source) {
		return statusResponse(SWWrongOffset)
	}
	end := min(offset+length, len(source))

	response := make([]byte, 0, end-offset+2)
	response = append(response, source[offset:end]...)
	return append(response, statusResponse(SWSuccess)...)
}

func statusResponse(sw uint16) []byte {
	return []byte{byte(sw >> 8), byte(sw)}
}
