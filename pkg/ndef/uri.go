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

package ndef

import (
	"errors"
	"strings"
)

// URIRecordType is the well-known type field of a URI record.
const URIRecordType = "U"

// ErrURIPayloadTooShort reports a URI payload missing its prefix byte.
var ErrURIPayloadTooShort = errors.New("ndef: URI payload too short")

// uriPrefixes is the NFC Forum URI RTD abbreviation table. The first
// payload byte indexes into it; code 0x00 means the suffix is the
// whole URI.
var uriPrefixes = [...]string{
	0x00: "",
	0x01: "http://www.",
	0x02: "https://www.",
	0x03: "http://",
	0x04: "https://",
	0x05: "tel:",
	0x06: "mailto:",
	0x07: "ftp://anonymous:anonymous@",
	0x08: "ftp://ftp.",
	0x09: "ftps://",
	0x0A: "sftp://",
	0x0B: "smb://",
	0x0C: "nfs://",
	0x0D: "ftp://",
	0x0E: "dav://",
	0x0F: "news:",
	0x10: "telnet://",
	0x11: "imap:",
	0x12: "rtsp://",
	0x13: "urn:",
	0x14: "pop:",
	0x15: "sip:",
	0x16: "sips:",
	0x17: "tftp:",
	0x18: "btspp://",
	0x19: "btl2cap://",
	0x1A: "btgoep://",
	0x1B: "tcpobex://",
	0x1C: "irdaobex://",
	0x1D: "file://",
	0x1E: "urn:epc:id:",
	0x1F: "urn:epc:tag:",
	0x20: "urn:epc:pat:",
	0x21: "urn:epc:raw:",
	0x22: "urn:epc:",
	0x23: "urn:nfc:",
}

// NewURIRecord creates a URI record with no prefix abbreviation
// applied: the payload is prefix code 0x00 followed by the full URI.
// Every writer of this library emits the unabbreviated form so the
// wire image is identical across implementations; readers still
// understand the whole table.
func NewURIRecord(uri string) Record {
	payload := make([]byte, 1+len(uri))
	copy(payload[1:], uri)
	return Record{
		TNF:     TNFWellKnown,
		Type:    URIRecordType,
		Payload: payload,
	}
}

// NewAbbreviatedURIRecord creates a URI record compressed with the
// longest matching table prefix.
func NewAbbreviatedURIRecord(uri string) Record {
	code, prefixLen := 0, 0
	for i := 1; i < len(uriPrefixes); i++ {
		if p := uriPrefixes[i]; len(p) > prefixLen && strings.HasPrefix(uri, p) {
			code, prefixLen = i, len(p)
		}
	}

	suffix := uri[prefixLen:]
	payload := make([]byte, 1+len(suffix))
	payload[0] = byte(code)
	copy(payload[1:], suffix)
	return Record{
		TNF:     TNFWellKnown,
		Type:    URIRecordType,
		Payload: payload,
	}
}

// DecodeURI expands a URI record payload to the full URI. A prefix
// code outside the table is treated as code 0 rather than rejected;
// tags in the wild use reserved codes and the suffix is still useful.
func DecodeURI(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrURIPayloadTooShort
	}
	return URIPrefix(payload[0]) + string(payload[1:]), nil
}

// URIPrefix returns the table entry for a prefix code, or "" for
// codes outside the table.
func URIPrefix(code byte) string {
	if int(code) < len(uriPrefixes) {
		return uriPrefixes[code]
	}
	return ""
}
