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

// Package ndef implements the NFC Data Exchange Format message and
// record codec used by the Type 4 Tag engines, including the
// NLEN-prefixed file form stored in a tag's NDEF file.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00 // Empty record
	TNFWellKnown   byte = 0x01 // NFC Forum well-known type
	TNFMedia       byte = 0x02 // Media-type (RFC 2046)
	TNFAbsoluteURI byte = 0x03 // Absolute URI (RFC 3986)
	TNFExternal    byte = 0x04 // NFC Forum external type
	TNFUnknown     byte = 0x05 // Unknown
	TNFUnchanged   byte = 0x06 // Unchanged (for chunked records)
)

// Record header flag bits.
const (
	flagMB   byte = 0x80 // Message Begin
	flagME   byte = 0x40 // Message End
	flagCF   byte = 0x20 // Chunk Flag
	flagSR   byte = 0x10 // Short Record
	flagIL   byte = 0x08 // ID Length present
	tnfMask  byte = 0x07
	shortMax      = 255
)

// Codec errors.
var (
	ErrEmptyMessage  = errors.New("ndef: empty message")
	ErrTruncated     = errors.New("ndef: truncated record data")
	ErrInvalidTNF    = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord = errors.New("ndef: chunked records not supported")
	ErrFieldTooLong  = errors.New("ndef: type or ID field too long")
	ErrEmptyFile     = errors.New("ndef: file has no content")
	ErrFileTooShort  = errors.New("ndef: file shorter than length prefix")
)

// Record is a single NDEF record.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
}

// Message is an ordered sequence of NDEF records. Record order is
// preserved on the wire; the MB/ME framing flags are derived from the
// position in the sequence when marshalling.
type Message struct {
	Records []Record
}

// NewMessage builds a message from the given records.
func NewMessage(records ...Record) *Message {
	return &Message{Records: records}
}

// Marshal serializes the message to its wire form.
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	for i := range m.Records {
		rec, err := marshalRecord(&m.Records[i], i == 0, i == len(m.Records)-1)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec...)
	}
	return out, nil
}

// Unmarshal parses wire-form message data. Parsing stops at the record
// carrying the Message End flag; trailing bytes after it are ignored.
func (m *Message) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyMessage
	}

	m.Records = nil
	offset := 0
	for offset < len(data) {
		rec, n, last, err := unmarshalRecord(data[offset:])
		if err != nil {
			return fmt.Errorf("record at offset %d: %w", offset, err)
		}
		m.Records = append(m.Records, rec)
		offset += n
		if last {
			break
		}
	}

	return nil
}

// EncodeFile serializes the message in NDEF file form: a 2-byte
// big-endian NLEN followed by exactly NLEN bytes of message data.
func EncodeFile(m *Message) ([]byte, error) {
	body, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	if len(body) > 0xFFFF {
		return nil, fmt.Errorf("ndef: message of %d bytes exceeds file limit", len(body))
	}

	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out, nil
}

// DecodeFile parses NDEF file contents (NLEN prefix plus message
// bytes). A zero NLEN means the tag holds no message and is reported
// as ErrEmptyFile.
func DecodeFile(data []byte) (*Message, error) {
	if len(data) < 2 {
		return nil, ErrFileTooShort
	}
	nlen := int(binary.BigEndian.Uint16(data))
	if nlen == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) < 2+nlen {
		return nil, fmt.Errorf("%w: NLEN %d, %d bytes present", ErrFileTooShort, nlen, len(data)-2)
	}

	var m Message
	if err := m.Unmarshal(data[2 : 2+nlen]); err != nil {
		return nil, err
	}
	return &m, nil
}

// Text decodes the record payload to a string according to its type:
// URI records go through the prefix abbreviation table, Text records
// honor the status byte (language code, UTF-8/UTF-16), and anything
// else is decoded as raw UTF-8 on a best-effort basis. Returns false
// when the payload cannot be decoded; callers are expected to skip
// such records rather than fail the whole message.
func (r *Record) Text() (string, bool) {
	if r.TNF == TNFWellKnown {
		switch r.Type {
		case URIRecordType:
			uri, err := DecodeURI(r.Payload)
			if err != nil {
				return "", false
			}
			return uri, true
		case TextRecordType:
			txt, err := DecodeText(r.Payload)
			if err != nil {
				return "", false
			}
			return txt.Content, true
		}
	}
	if !utf8.Valid(r.Payload) {
		return "", false
	}
	return string(r.Payload), true
}

// Texts returns the decodable string content of every record, in
// order. Undecodable records are skipped.
func (m *Message) Texts() []string {
	out := make([]string, 0, len(m.Records))
	for i := range m.Records {
		if s, ok := m.Records[i].Text(); ok {
			out = append(out, s)
		}
	}
	return out
}

func marshalRecord(r *Record, first, last bool) ([]byte, error) {
	if r.TNF > TNFUnchanged {
		return nil, ErrInvalidTNF
	}
	if len(r.Type) > 0xFF || len(r.ID) > 0xFF {
		return nil, ErrFieldTooLong
	}

	flags := r.TNF & tnfMask
	if first {
		flags |= flagMB
	}
	if last {
		flags |= flagME
	}
	short := len(r.Payload) <= shortMax
	if short {
		flags |= flagSR
	}
	if r.ID != "" {
		flags |= flagIL
	}

	out := make([]byte, 0, 8+len(r.Type)+len(r.ID)+len(r.Payload))
	out = append(out, flags, byte(len(r.Type)))
	if short {
		out = append(out, byte(len(r.Payload)))
	} else {
		out = binary.BigEndian.AppendUint32(out, uint32(len(r.Payload)))
	}
	if r.ID != "" {
		out = append(out, byte(len(r.ID)))
	}
	out = append(out, r.Type...)
	out = append(out, r.ID...)
	out = append(out, r.Payload...)
	return out, nil
}

func unmarshalRecord(data []byte) (rec Record, n int, last bool, err error) {
	if len(data) < 3 {
		return Record{}, 0, false, ErrTruncated
	}

	flags := data[0]
	if flags&flagCF != 0 {
		return Record{}, 0, false, ErrChunkedRecord
	}
	rec.TNF = flags & tnfMask
	last = flags&flagME != 0

	typeLen := int(data[1])
	pos := 2

	var payloadLen int
	if flags&flagSR != 0 {
		payloadLen = int(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return Record{}, 0, false, ErrTruncated
		}
		payloadLen = int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
	}

	idLen := 0
	if flags&flagIL != 0 {
		if pos >= len(data) {
			return Record{}, 0, false, ErrTruncated
		}
		idLen = int(data[pos])
		pos++
	}

	if pos+typeLen+idLen+payloadLen > len(data) {
		return Record{}, 0, false, ErrTruncated
	}

	rec.Type = string(data[pos : pos+typeLen])
	pos += typeLen
	rec.ID = string(data[pos : pos+idLen])
	pos += idLen
	if payloadLen > 0 {
		rec.Payload = make([]byte, payloadLen)
		copy(rec.Payload, data[pos:pos+payloadLen])
		pos += payloadLen
	}

	return rec, pos, last, nil
}
