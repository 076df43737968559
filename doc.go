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

// Package klippynfc turns a PN532 module into a tag that opens a printer's
// web interface when tapped by a phone, and can also read, write and verify
// physical NTAG/Ultralight tags carrying the same URL.
//
// The package has three layers:
//
//   - Protocol codecs: NDEF URI records (pkg/ndef), the Type 4 capability
//     container and APDU engine, and the Type 2 TLV memory codec.
//   - Device: a thin wrapper over a Transport that speaks the PN532 command
//     set, in both initiator (reader/writer) and target (emulation) roles.
//   - Orchestration: the Emulator's long-lived activate-and-serve loop, and
//     the one-shot read/write/verify operations in the tagops package.
//
// Transports for UART, I2C and SPI live under transport/.
package klippynfc
