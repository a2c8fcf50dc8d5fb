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

// Type 4 Tag wire constants (NFC Forum T4T mapping 2.0).
var (
	// NDEFApplicationAID selects the NDEF tag application.
	NDEFApplicationAID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}
	// CCFileID is the well-known Capability Container file identifier.
	CCFileID = []byte{0xE1, 0x03}
	// DefaultNDEFFileID is the conventional NDEF file identifier,
	// used directly when a tag's CC cannot name one.
	DefaultNDEFFileID = []byte{0xE1, 0x04}
)

// Capability Container layout constants.
const (
	CCLen             = 15     // fixed CC file size
	ccMappingVersion  = 0x20   // mapping version 2.0
	ccMLe             = 0x003B // max response payload we accept
	ccMLc             = 0x0034 // max command payload we accept
	ccFileControlTag  = 0x04   // NDEF File Control TLV tag
	ccFileControlLen  = 6      // file id + max size + access bytes
	ccMaxNDEFSize     = 0x03E8
	ccReadAccessOpen  = 0x00
	ccWriteAccessNone = 0xFF
)

// MaxChunkSize caps a single READ BINARY data field. 0xF0 stays under
// every MLe seen in the wild, so chunked reads work against tags that
// advertise small buffers or none at all.
const MaxChunkSize = 0xF0

// CapabilityContainer describes the NDEF file a tag exposes. Only the
// fields a reader acts on are kept; the rest of the 15-byte image is
// fixed by this implementation.
type CapabilityContainer struct {
	NDEFFileID  []byte
	MaxNDEFSize int
	ReadOnly    bool
}

// buildCC produces the fixed 15-byte CC image naming fileID as the
// NDEF file. Pure function of its input; callers rebuild it per read.
func buildCC(fileID []byte) []byte {
	cc := make([]byte, 0, CCLen)
	cc = binary.BigEndian.AppendUint16(cc, CCLen)
	cc = append(cc, ccMappingVersion)
	cc = binary.BigEndian.AppendUint16(cc, ccMLe)
	cc = binary.BigEndian.AppendUint16(cc, ccMLc)
	cc = append(cc, ccFileControlTag, ccFileControlLen)
	cc = append(cc, fileID[0], fileID[1])
	cc = binary.BigEndian.AppendUint16(cc, ccMaxNDEFSize)
	cc = append(cc, ccReadAccessOpen, ccWriteAccessNone)
	return cc
}

// ParseCC extracts the NDEF File Control TLV from raw CC bytes read
// off a peer tag. The fixed 7-byte header is skipped and the TLV area
// scanned defensively: NULL TLVs are stepped over, unknown TLVs are
// skipped by their declared length, and truncated declarations end
// the scan. The input is untrusted; no length field is believed
// without a bounds check.
func ParseCC(raw []byte) (*CapabilityContainer, error) {
	const headerLen = 7
	if len(raw) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrCCMalformed, len(raw))
	}

	cclen := int(binary.BigEndian.Uint16(raw))
	if cclen < headerLen {
		return nil, fmt.Errorf("%w: CCLEN %d", ErrCCMalformed, cclen)
	}
	if cclen < len(raw) {
		raw = raw[:cclen]
	}

	for off := headerLen; off+1 < len(raw); {
		tag, length := raw[off], int(raw[off+1])
		if tag == 0x00 {
			// NULL TLV, single padding byte
			off++
			continue
		}
		if off+2+length > len(raw) {
			break
		}
		if tag == ccFileControlTag && length >= ccFileControlLen {
			v := raw[off+2 : off+2+length]
			return &CapabilityContainer{
				NDEFFileID:  []byte{v[0], v[1]},
				MaxNDEFSize: int(binary.BigEndian.Uint16(v[2:4])),
				ReadOnly:    v[5] != 0x00,
			}, nil
		}
		off += 2 + length
	}

	return nil, fmt.Errorf("%w: no NDEF file control TLV", ErrCCMalformed)
}
