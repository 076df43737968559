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

package uart

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB serial bridges commonly found on PN532 breakout boards
var knownBridges = map[string]bool{
	"067B:2303": true, // Prolific PL2303
	"0403:6001": true, // FTDI FT232
	"10C4:EA60": true, // Silicon Labs CP210x
	"1A86:7523": true, // QinHeng CH340
}

var productKeywords = []string{"pn532", "nfc", "rfid"}

// DetectPorts returns serial port paths that look like PN532 devices, by
// USB VID:PID of the usual bridge chips or by product string.
func DetectPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var out []string
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if isLikelyPN532(port) {
			out = append(out, port.Name)
		}
	}
	return out, nil
}

func isLikelyPN532(port *enumerator.PortDetails) bool {
	vidpid := strings.ToUpper(port.VID + ":" + port.PID)
	if knownBridges[vidpid] {
		return true
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range productKeywords {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}
