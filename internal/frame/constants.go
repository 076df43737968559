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

// Package frame implements the PN532 host frame format shared by the UART,
// I2C and SPI transports.
package frame

// Frame direction identifiers (TFI byte)
const (
	HostToPn532 = 0xD4 // commands from host to PN532
	Pn532ToHost = 0xD5 // responses from PN532 to host
)

// Frame markers
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// ErrorFrameTFI marks an application-level error frame from the PN532.
const ErrorFrameTFI = 0x7F

// MaxDataLength is the largest data field a normal frame carries.
const MaxDataLength = 255

// ACK and NACK frames used for flow control
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)
