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

// PN532 command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSamConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInListPassiveTarget = 0x4A
	cmdInDataExchange      = 0x40
	cmdInRelease           = 0x52
	cmdTgInitAsTarget      = 0x8C
	cmdTgGetData           = 0x86
	cmdTgSetData           = 0x8E
)

// Tag-level command bytes carried inside InDataExchange for Type 2 tags
const (
	tag2CmdRead  = 0x30 // returns 16 bytes (4 pages)
	tag2CmdWrite = 0xA2 // writes one 4-byte page
)

// Type 2 tag geometry
const (
	// Type2PageSize is the page granularity of NTAG/Ultralight memory.
	Type2PageSize = 4
	// type2ReadChunk is the number of bytes a single READ command returns.
	type2ReadChunk = 16
)
