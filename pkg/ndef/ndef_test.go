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
	"bytes"
	"errors"
	"testing"
)

func TestMessageMarshalUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		records []Record
	}{
		{
			name:    "single URI record",
			records: []Record{NewURIRecord("zaplink://connect/abc123")},
		},
		{
			name:    "single text record",
			records: []Record{NewTextRecord("hello", "en")},
		},
		{
			name: "two records",
			records: []Record{
				NewTextRecord("first", "en"),
				NewURIRecord("https://example.com"),
			},
		},
		{
			name: "long payload forces 4-byte length",
			records: []Record{{
				TNF:     TNFMedia,
				Type:    "application/octet-stream",
				Payload: bytes.Repeat([]byte{0xAB}, 300),
			}},
		},
		{
			name: "record with ID field",
			records: []Record{{
				TNF:     TNFWellKnown,
				Type:    "T",
				ID:      "r0",
				Payload: []byte{0x02, 'e', 'n', 'x'},
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := NewMessage(tt.records...)
			data, err := msg.Marshal()
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}

			var parsed Message
			if err := parsed.Unmarshal(data); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}

			if len(parsed.Records) != len(tt.records) {
				t.Fatalf("got %d records, want %d", len(parsed.Records), len(tt.records))
			}
			for i, rec := range parsed.Records {
				want := tt.records[i]
				if rec.TNF != want.TNF || rec.Type != want.Type || rec.ID != want.ID {
					t.Errorf("record %d header = %+v, want %+v", i, rec, want)
				}
				if !bytes.Equal(rec.Payload, want.Payload) {
					t.Errorf("record %d payload mismatch", i)
				}
			}
		})
	}
}

func TestMessageMarshalEmpty(t *testing.T) {
	t.Parallel()

	var msg Message
	if _, err := msg.Marshal(); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Marshal error = %v, want ErrEmptyMessage", err)
	}
}

func TestMessageUnmarshalStopsAtMessageEnd(t *testing.T) {
	t.Parallel()

	data, err := NewMessage(NewTextRecord("done", "en")).Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	// Trailing garbage after the ME record must be ignored.
	data = append(data, 0xDE, 0xAD, 0xBE, 0xEF)

	var msg Message
	if err := msg.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if len(msg.Records) != 1 {
		t.Errorf("got %d records, want 1", len(msg.Records))
	}
}

func TestMessageUnmarshalTruncated(t *testing.T) {
	t.Parallel()

	data, err := NewMessage(NewTextRecord("truncate me", "en")).Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var msg Message
	if err := msg.Unmarshal(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated record, got nil")
	}
}

func TestMessageUnmarshalChunkedRejected(t *testing.T) {
	t.Parallel()

	// CF flag set on an otherwise plausible record header.
	data := []byte{0xB1 | 0x20, 0x01, 0x01, 'T', 0x00}

	var msg Message
	if err := msg.Unmarshal(data); !errors.Is(err, ErrChunkedRecord) {
		t.Errorf("Unmarshal error = %v, want ErrChunkedRecord", err)
	}
}

func TestEncodeDecodeFile(t *testing.T) {
	t.Parallel()

	msg := NewMessage(NewURIRecord("zaplink://connect/u-42"))
	file, err := EncodeFile(msg)
	if err != nil {
		t.Fatalf("EncodeFile error: %v", err)
	}

	// NLEN must equal the serialized message length.
	body, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if got := int(file[0])<<8 | int(file[1]); got != len(body) {
		t.Errorf("NLEN = %d, want %d", got, len(body))
	}

	parsed, err := DecodeFile(file)
	if err != nil {
		t.Fatalf("DecodeFile error: %v", err)
	}
	texts := parsed.Texts()
	if len(texts) != 1 || texts[0] != "zaplink://connect/u-42" {
		t.Errorf("Texts() = %v", texts)
	}
}

func TestDecodeFileEdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		data    []byte
	}{
		{name: "zero NLEN is an empty tag", data: []byte{0x00, 0x00}, wantErr: ErrEmptyFile},
		{name: "zero NLEN with trailing bytes", data: []byte{0x00, 0x00, 0xD1}, wantErr: ErrEmptyFile},
		{name: "missing prefix", data: []byte{0x00}, wantErr: ErrFileTooShort},
		{name: "NLEN beyond data", data: []byte{0x00, 0x10, 0xD1}, wantErr: ErrFileTooShort},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := DecodeFile(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeFile error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordTextLeniency(t *testing.T) {
	t.Parallel()

	// A record whose payload is not valid UTF-8 is skipped, not fatal.
	bad := Record{TNF: TNFExternal, Type: "x:y", Payload: []byte{0xFF, 0xFE, 0xFD}}
	if _, ok := bad.Text(); ok {
		t.Error("undecodable record reported ok")
	}

	msg := NewMessage(
		bad,
		NewURIRecord("zaplink://connect/kept"),
	)
	texts := msg.Texts()
	if len(texts) != 1 || texts[0] != "zaplink://connect/kept" {
		t.Errorf("Texts() = %v, want the URI only", texts)
	}
}

func TestRecordTextOtherTypeBestEffort(t *testing.T) {
	t.Parallel()

	rec := Record{TNF: TNFMedia, Type: "text/plain", Payload: []byte("plain bytes")}
	got, ok := rec.Text()
	if !ok || got != "plain bytes" {
		t.Errorf("Text() = %q, %v", got, ok)
	}
}
