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

package t4t

import (
	"encoding/binary"
	"fmt"
)

// ISO 7816-4 instruction codes used by the Type 4 Tag protocol.
const (
	InsSelect     byte = 0xA4
	InsReadBinary byte = 0xB0
)

// SELECT P1 values.
const (
	SelectByName   byte = 0x04 // select application by AID
	SelectByFileID byte = 0x00 // select EF by 2-byte file identifier
)

// Status words. Every response ends in one of these.
const (
	SWSuccess           uint16 = 0x9000
	SWFileNotFound      uint16 = 0x6A82
	SWWrongParameters   uint16 = 0x6B00
	SWInsNotSupported   uint16 = 0x6D00
	SWClassNotSupported uint16 = 0x6E00
)

// leNone marks an absent Le field on a parsed command.
const leNone = -1

// apduHeaderLen is the mandatory CLA INS P1 P2 prefix.
const apduHeaderLen = 4

// CommandAPDU is a parsed ISO 7816-4 command. Le is the expected
// response length in bytes; 0 on the wire means 256 and is stored
// expanded. A negative Le means the field was absent.
type CommandAPDU struct {
	Data []byte
	Le   int
	Cla  byte
	Ins  byte
	P1   byte
	P2   byte
}

// HasLe reports whether the command carried an Le field.
func (c *CommandAPDU) HasLe() bool { return c.Le >= 0 }

// Offset interprets P1,P2 as a 16-bit big-endian offset (READ BINARY
// with bit 8 of P1 clear).
func (c *CommandAPDU) Offset() int {
	return int(c.P1)<<8 | int(c.P2)
}

// ParseCommandAPDU decodes a raw command. Body layout is inferred
// from the total length, as 7816-3 short encoding demands: header
// only (case 1), header+Le (case 2), header+Lc+data (case 3), or
// header+Lc+data+Le (case 4). Extended length encoding is not part
// of the Type 4 Tag mapping and is rejected.
func ParseCommandAPDU(raw []byte) (*CommandAPDU, error) {
	if len(raw) < apduHeaderLen {
		return nil, fmt.Errorf("%w: command of %d bytes", ErrAPDUTooShort, len(raw))
	}

	cmd := &CommandAPDU{
		Cla: raw[0],
		Ins: raw[1],
		P1:  raw[2],
		P2:  raw[3],
		Le:  leNone,
	}
	body := raw[apduHeaderLen:]

	switch {
	case len(body) == 0:
		// Case 1

	case len(body) == 1:
		// Case 2: lone Le, 0x00 encodes 256
		cmd.Le = decodeLe(body[0])

	default:
		lc := int(body[0])
		rest := body[1:]
		switch {
		case len(rest) == lc:
			// Case 3
			cmd.Data = append([]byte(nil), rest...)
		case len(rest) == lc+1:
			// Case 4
			cmd.Data = append([]byte(nil), rest[:lc]...)
			cmd.Le = decodeLe(rest[lc])
		default:
			return nil, fmt.Errorf("%w: Lc %d with %d body bytes", ErrAPDUMalformed, lc, len(rest))
		}
	}

	return cmd, nil
}

// Bytes encodes the command in short form.
func (c *CommandAPDU) Bytes() []byte {
	out := make([]byte, 0, apduHeaderLen+2+len(c.Data))
	out = append(out, c.Cla, c.Ins, c.P1, c.P2)
	if len(c.Data) > 0 {
		out = append(out, byte(len(c.Data)))
		out = append(out, c.Data...)
	}
	if c.Le >= 0 {
		out = append(out, encodeLe(c.Le))
	}
	return out
}

func decodeLe(b byte) int {
	if b == 0x00 {
		return 256
	}
	return int(b)
}

func encodeLe(le int) byte {
	if le >= 256 {
		return 0x00
	}
	return byte(le)
}

// ResponseAPDU is a response payload plus its trailing status word.
type ResponseAPDU struct {
	Data []byte
	SW   uint16
}

// ParseResponseAPDU splits raw response bytes into payload and status
// word. Anything shorter than the 2-byte trailer is malformed.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: response of %d bytes", ErrAPDUTooShort, len(raw))
	}
	n := len(raw) - 2
	resp := &ResponseAPDU{SW: binary.BigEndian.Uint16(raw[n:])}
	if n > 0 {
		resp.Data = append([]byte(nil), raw[:n]...)
	}
	return resp, nil
}

// Bytes encodes the response as payload ++ SW1 SW2.
func (r *ResponseAPDU) Bytes() []byte {
	out := make([]byte, len(r.Data)+2)
	copy(out, r.Data)
	binary.BigEndian.PutUint16(out[len(r.Data):], r.SW)
	return out
}

// IsSuccess reports whether the status word is 0x9000.
func (r *ResponseAPDU) IsSuccess() bool { return r.SW == SWSuccess }

// statusResponse builds a data-free response for a status word.
func statusResponse(sw uint16) []byte {
	return (&ResponseAPDU{SW: sw}).Bytes()
}

// selectCommand builds a SELECT with the given P1/P2 semantics. File
// selection conventionally uses P2 0x0C (no FCI in the response).
func selectCommand(p1, p2 byte, data []byte) *CommandAPDU {
	return &CommandAPDU{
		Ins:  InsSelect,
		P1:   p1,
		P2:   p2,
		Data: data,
		Le:   leNone,
	}
}

// readBinaryCommand builds a READ BINARY for length bytes at offset.
func readBinaryCommand(offset, length int) *CommandAPDU {
	return &CommandAPDU{
		Ins: InsReadBinary,
		P1:  byte(offset >> 8),
		P2:  byte(offset),
		Le:  length,
	}
}
