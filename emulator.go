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
	"bytes"

	"github.com/ZaparooProject/go-t4t/pkg/ndef"
)

// SelectedFile is the emulator's one piece of session state: which
// elementary file, if any, the reader has selected.
type SelectedFile int

const (
	// SelectedNone means no file is selected.
	SelectedNone SelectedFile = iota
	// SelectedCC means the Capability Container file is selected.
	SelectedCC
	// SelectedNDEF means the NDEF data file is selected.
	SelectedNDEF
)

// String returns the file name for logging.
func (s SelectedFile) String() string {
	switch s {
	case SelectedCC:
		return "cc"
	case SelectedNDEF:
		return "ndef"
	default:
		return "none"
	}
}

// IdentitySource supplies the identifier embedded in the emulated
// tag. It is queried once per NDEF file read, never cached, so the
// tag always reflects whoever is signed in at the moment of the tap.
type IdentitySource interface {
	// CurrentIdentifier returns the signed-in identifier, or false
	// when nobody is signed in.
	CurrentIdentifier() (string, bool)
}

// IdentityFunc adapts a function to IdentitySource.
type IdentityFunc func() (string, bool)

// CurrentIdentifier implements IdentitySource.
func (f IdentityFunc) CurrentIdentifier() (string, bool) { return f() }

// StaticIdentity is an IdentitySource that always returns the same
// identifier. Useful for CLIs and tests.
type StaticIdentity string

// CurrentIdentifier implements IdentitySource.
func (s StaticIdentity) CurrentIdentifier() (string, bool) {
	return string(s), s != ""
}

// EmulatorConfig tunes an Emulator. The zero value selects the
// defaults used on the wire by every deployment so far.
type EmulatorConfig struct {
	// Scheme is the deep-link scheme embedded in the NDEF file.
	// Empty means DefaultScheme.
	Scheme string
	// NDEFFileID overrides the NDEF file identifier named by the CC.
	// Must be 2 bytes; nil means DefaultNDEFFileID.
	NDEFFileID []byte
}

// Emulator is the host-card-emulation side of the Type 4 Tag
// protocol: a tiny file-selection state machine answering SELECT and
// READ BINARY. One instance serves one HCE session; the platform's
// NFC callback feeds it one APDU at a time, so no locking happens on
// the APDU path.
type Emulator struct {
	identity IdentitySource
	scheme   string
	fileID   []byte
	state    SelectedFile
}

// Responder is the host-side surface a card-emulation transport
// drives: raw APDU in, raw response out, plus the deactivation signal
// the platform delivers on link loss or deselect.
type Responder interface {
	ProcessAPDU(raw []byte) []byte
	Deactivate()
}

// NewEmulator creates an emulator serving identifiers from src.
func NewEmulator(src IdentitySource, cfg EmulatorConfig) *Emulator {
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	fileID := cfg.NDEFFileID
	if fileID == nil {
		fileID = DefaultNDEFFileID
	}
	return &Emulator{
		identity: src,
		scheme:   cfg.Scheme,
		fileID:   fileID,
		state:    SelectedNone,
	}
}

// Selected exposes the current file selection, mainly for tests and
// session logging.
func (e *Emulator) Selected() SelectedFile { return e.state }

// Deactivate resets file selection. The platform calls it on link
// loss or deselect; no partial-read state survives a disconnect.
func (e *Emulator) Deactivate() {
	e.state = SelectedNone
}

// ProcessAPDU answers one command APDU. It always returns a complete
// response ending in a status word; malformed input from the peer is
// answered, never propagated.
func (e *Emulator) ProcessAPDU(raw []byte) []byte {
	cmd, err := ParseCommandAPDU(raw)
	if err != nil {
		return statusResponse(SWWrongParameters)
	}

	if cmd.Cla != 0x00 {
		return statusResponse(SWClassNotSupported)
	}

	switch cmd.Ins {
	case InsSelect:
		return e.handleSelect(cmd)
	case InsReadBinary:
		return e.handleReadBinary(cmd)
	default:
		return statusResponse(SWInsNotSupported)
	}
}

func (e *Emulator) handleSelect(cmd *CommandAPDU) []byte {
	switch cmd.P1 {
	case SelectByName:
		if !bytes.Equal(cmd.Data, NDEFApplicationAID) {
			return statusResponse(SWFileNotFound)
		}
		// Application selected, no file yet.
		e.state = SelectedNone
		return statusResponse(SWSuccess)

	case SelectByFileID:
		switch {
		case bytes.Equal(cmd.Data, CCFileID):
			e.state = SelectedCC
		case bytes.Equal(cmd.Data, e.fileID):
			e.state = SelectedNDEF
		default:
			e.state = SelectedNone
			return statusResponse(SWFileNotFound)
		}
		return statusResponse(SWSuccess)

	default:
		return statusResponse(SWWrongParameters)
	}
}

func (e *Emulator) handleReadBinary(cmd *CommandAPDU) []byte {
	file, ok := e.selectedFileBytes()
	if !ok {
		return statusResponse(SWFileNotFound)
	}

	offset := cmd.Offset()
	if offset > len(file) {
		return statusResponse(SWWrongParameters)
	}

	length := 256
	if cmd.HasLe() {
		length = cmd.Le
	}
	if remaining := len(file) - offset; length > remaining {
		length = remaining
	}

	resp := &ResponseAPDU{
		Data: file[offset : offset+length],
		SW:   SWSuccess,
	}
	return resp.Bytes()
}

// selectedFileBytes builds the bytes of the currently selected file.
// Files are synthesized per call, not cached, so the NDEF contents
// always carry the identifier of the currently signed-in user.
func (e *Emulator) selectedFileBytes() ([]byte, bool) {
	switch e.state {
	case SelectedCC:
		return buildCC(e.fileID), true
	case SelectedNDEF:
		if e.identity == nil {
			return nil, false
		}
		id, ok := e.identity.CurrentIdentifier()
		if !ok {
			return nil, false
		}
		file, err := buildNDEFFile(e.scheme, id)
		if err != nil {
			return nil, false
		}
		return file, true
	default:
		return nil, false
	}
}

// buildNDEFFile serializes a one-record URI message carrying the deep
// link for id, in NDEF file form (NLEN prefix included).
func buildNDEFFile(scheme, id string) ([]byte, error) {
	rec := ndef.NewURIRecord(BuildDeepLink(scheme, id))
	return ndef.EncodeFile(ndef.NewMessage(rec))
}
