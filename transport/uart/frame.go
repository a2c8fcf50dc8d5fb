// Copyright 2026 The Zaparoo Project Contributors.
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
	"errors"
	"fmt"
)

// PN532 frame constants (UM0701-02 section 6.2.1).
const (
	hostToPn532 = 0xD4 // TFI for commands from the host
	pn532ToHost = 0xD5 // TFI for responses from the chip

	preamble   = 0x00
	startCode1 = 0x00
	startCode2 = 0xFF
	postamble  = 0x00

	maxFrameData = 263
)

// ackFrame is the flow-control acknowledge the PN532 sends after a
// well-formed command frame.
var ackFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// Framing errors.
var (
	errFrameTooLarge  = errors.New("uart: frame data too large")
	errFrameCorrupt   = errors.New("uart: frame corrupted")
	errNoAck          = errors.New("uart: no ACK received")
	errFrameDirection = errors.New("uart: unexpected frame direction")
)

// checksum sums bytes; frame checksums are chosen so the covered
// bytes plus the checksum sum to zero mod 256.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// buildFrame wraps cmd+args in a normal information frame.
func buildFrame(cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args) // TFI + command + args
	if dataLen > maxFrameData {
		return nil, errFrameTooLarge
	}

	frame := make([]byte, 0, dataLen+7)
	frame = append(frame, preamble, startCode1, startCode2)
	frame = append(frame, byte(dataLen), byte(-byte(dataLen)))
	frame = append(frame, hostToPn532, cmd)
	frame = append(frame, args...)
	frame = append(frame, byte(-checksum(frame[5:])))
	frame = append(frame, postamble)
	return frame, nil
}

// parseFrame validates a received frame starting at the 00 FF start
// code and returns the data field (TFI stripped, response code kept).
// buf must begin with startCode1 startCode2 LEN LCS.
func parseFrame(buf []byte) ([]byte, error) {
	if len(buf) < 6 {
		return nil, fmt.Errorf("%w: %d bytes", errFrameCorrupt, len(buf))
	}
	if buf[0] != startCode1 || buf[1] != startCode2 {
		return nil, fmt.Errorf("%w: bad start code", errFrameCorrupt)
	}

	dataLen := int(buf[2])
	if buf[2]+buf[3] != 0 {
		return nil, fmt.Errorf("%w: length checksum", errFrameCorrupt)
	}
	if len(buf) < 4+dataLen+1 {
		return nil, fmt.Errorf("%w: truncated data field", errFrameCorrupt)
	}

	data := buf[4 : 4+dataLen]
	dcs := buf[4+dataLen]
	if checksum(data)+dcs != 0 {
		return nil, fmt.Errorf("%w: data checksum", errFrameCorrupt)
	}
	if dataLen < 2 {
		return nil, fmt.Errorf("%w: data field of %d bytes", errFrameCorrupt, dataLen)
	}
	if data[0] != pn532ToHost {
		return nil, errFrameDirection
	}

	return data[1:], nil
}
