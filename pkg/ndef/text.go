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
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Text record constants. The status byte carries the UTF-16 flag in
// bit 7 and the language code length in the low 6 bits.
const (
	TextRecordType = "T"
	textUTF16Flag  = 0x80
	textLangMask   = 0x3F
	maxLangLen     = 63
)

// Text record errors.
var (
	ErrTextPayloadTooShort = errors.New("ndef: text payload too short")
	ErrTextLangTruncated   = errors.New("ndef: language code truncated")
	ErrTextLangTooLong     = errors.New("ndef: language code too long")
	ErrTextOddUTF16        = errors.New("ndef: UTF-16 text has odd byte count")
)

// Text is a decoded Text record payload.
type Text struct {
	Content  string
	Language string
	UTF16    bool
}

// NewTextRecord creates a UTF-8 Text record. An empty language
// defaults to "en".
func NewTextRecord(text, language string) Record {
	if language == "" {
		language = "en"
	}
	if len(language) > maxLangLen {
		language = language[:maxLangLen]
	}

	payload := make([]byte, 1+len(language)+len(text))
	payload[0] = byte(len(language))
	copy(payload[1:], language)
	copy(payload[1+len(language):], text)
	return Record{
		TNF:     TNFWellKnown,
		Type:    TextRecordType,
		Payload: payload,
	}
}

// EncodeText builds a Text record payload.
func EncodeText(text, language string) ([]byte, error) {
	if len(language) > maxLangLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTextLangTooLong, len(language))
	}
	return NewTextRecord(text, language).Payload, nil
}

// DecodeText parses a Text record payload. UTF-16 content is decoded
// big-endian unless a byte order mark says otherwise.
func DecodeText(payload []byte) (*Text, error) {
	if len(payload) < 1 {
		return nil, ErrTextPayloadTooShort
	}

	status := payload[0]
	langLen := int(status & textLangMask)
	if len(payload) < 1+langLen {
		return nil, ErrTextLangTruncated
	}

	out := &Text{
		Language: string(payload[1 : 1+langLen]),
		UTF16:    status&textUTF16Flag != 0,
	}
	body := payload[1+langLen:]

	if !out.UTF16 {
		out.Content = string(body)
		return out, nil
	}

	content, err := decodeUTF16(body)
	if err != nil {
		return nil, err
	}
	out.Content = content
	return out, nil
}

func decodeUTF16(body []byte) (string, error) {
	if len(body)%2 != 0 {
		return "", ErrTextOddUTF16
	}

	order := binary.ByteOrder(binary.BigEndian)
	if len(body) >= 2 {
		switch {
		case body[0] == 0xFE && body[1] == 0xFF:
			body = body[2:]
		case body[0] == 0xFF && body[1] == 0xFE:
			order = binary.LittleEndian
			body = body[2:]
		}
	}

	units := make([]uint16, len(body)/2)
	for i := range units {
		units[i] = order.Uint16(body[2*i:])
	}
	return string(utf16.Decode(units)), nil
}
