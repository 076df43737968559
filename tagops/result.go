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

package tagops

import (
	klippynfc "github.com/erikbuild/klippyNFC"
)

// SessionResult describes the outcome of one read or verify session.
// Fields are filled as far as the session got: a failed TLV parse still
// reports the UID and capability container that were read before it.
type SessionResult struct {
	// UID is the tag UID as a hex string.
	UID string
	// URL is the first URI record found on the tag, or "".
	URL string
	// RawNDEF is the raw NDEF message recovered from the TLV area.
	RawNDEF []byte
	// CC is the parsed capability container.
	CC klippynfc.CapabilityContainer
	// Verified reports whether the tag content matched the expected URL.
	// Only set by Verify.
	Verified bool
}
