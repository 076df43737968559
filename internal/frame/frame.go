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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrIncomplete indicates buf does not yet hold a whole frame; the
	// transport should keep reading.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrCorrupted indicates a frame that failed length or data checksum
	// validation. Transports treat it as retryable.
	ErrCorrupted = errors.New("corrupted frame")
	// ErrTooLong indicates command data exceeding the frame format limit.
	ErrTooLong = errors.New("command data too long for frame")
	// ErrErrorFrame indicates the PN532 answered with an application
	// error frame rather than a response.
	ErrErrorFrame = errors.New("device reported error frame")
)

// BuildCommand wraps a command byte and its arguments in a complete wire
// frame: preamble, start code, LEN, LCS, TFI, data, DCS, postamble.
func BuildCommand(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args) // TFI + command + args
	if dataLen > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(args))
	}

	buf := make([]byte, 0, dataLen+7)
	buf = append(buf, Preamble, StartCode1, StartCode2)
	buf = append(buf, byte(dataLen), byte(-dataLen)) // LEN, LCS
	buf = append(buf, HostToPn532, cmd)
	buf = append(buf, args...)

	dcs := HostToPn532 + cmd
	for _, b := range args {
		dcs += b
	}
	buf = append(buf, byte(-dcs), Postamble)
	return buf, nil
}

// IsAck reports whether buf begins with an ACK frame.
func IsAck(buf []byte) bool {
	return len(buf) >= len(AckFrame) && bytes.Equal(buf[:len(AckFrame)], AckFrame)
}

// FindStart returns the offset of the first 00 FF start code in buf, or -1.
// The returned offset points at the 0x00 of the pair.
func FindStart(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == StartCode1 && buf[i+1] == StartCode2 {
			return i
		}
	}
	return -1
}

// ParseResponse locates and validates a response frame in buf and returns
// its data field with the TFI stripped, so the first byte is the response
// code. A buffer that does not yet hold a whole frame returns
// ErrIncomplete; checksum and TFI failures return ErrCorrupted; an error
// frame from the chip returns ErrErrorFrame with its code.
func ParseResponse(buf []byte) ([]byte, error) {
	start := FindStart(buf)
	if start < 0 {
		return nil, fmt.Errorf("%w: no start code", ErrIncomplete)
	}

	// start+2 is LEN, start+3 is LCS
	if start+4 > len(buf) {
		return nil, fmt.Errorf("%w: header", ErrIncomplete)
	}
	frameLen := int(buf[start+2])
	if (buf[start+2]+buf[start+3])&0xFF != 0 {
		return nil, fmt.Errorf("%w: bad length checksum", ErrCorrupted)
	}

	dataStart := start + 4
	if dataStart+frameLen+1 > len(buf) {
		return nil, fmt.Errorf("%w: body", ErrIncomplete)
	}
	body := buf[dataStart : dataStart+frameLen]

	// DCS covers TFI through end of data; sum including DCS must be zero.
	sum := buf[dataStart+frameLen]
	for _, b := range body {
		sum += b
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: bad data checksum", ErrCorrupted)
	}

	if frameLen < 1 {
		return nil, fmt.Errorf("%w: empty body", ErrCorrupted)
	}
	switch body[0] {
	case ErrorFrameTFI:
		if frameLen < 2 {
			return nil, fmt.Errorf("%w: code missing", ErrErrorFrame)
		}
		return nil, fmt.Errorf("%w: code 0x%02X", ErrErrorFrame, body[1])
	case Pn532ToHost:
		data := make([]byte, frameLen-1)
		copy(data, body[1:])
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unexpected TFI 0x%02X", ErrCorrupted, body[0])
	}
}
