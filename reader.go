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
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-t4t/pkg/ndef"
)

// ReaderConfig tunes a Reader. The zero value reads tags written by
// this library's emulator.
type ReaderConfig struct {
	// Scheme is the deep-link scheme to extract. Empty means
	// DefaultScheme.
	Scheme string
}

// Reader is the initiator side of the Type 4 Tag protocol. It drives
// a two-tier acquisition: a transport-provided high-level NDEF read
// when available, then the raw APDU dance (select AID, read CC,
// locate and read the NDEF file in bounded chunks).
type Reader struct {
	scheme string
}

// NewReader creates a reader engine.
func NewReader(cfg ReaderConfig) *Reader {
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	return &Reader{scheme: cfg.Scheme}
}

// ReadIdentifier recovers the deep-link identifier from the tag
// behind tr. A tag that speaks the protocol but carries no matching
// deep link yields ErrNotOurTag; a broken channel yields a transport
// failure. Exactly one of identifier and error is meaningful.
func (r *Reader) ReadIdentifier(ctx context.Context, tr Transceiver) (string, error) {
	msg, err := r.ReadMessage(ctx, tr)
	if err != nil {
		return "", err
	}

	id, ok := ExtractIdentifier(r.scheme, msg.Texts()...)
	if !ok {
		return "", ErrNotOurTag
	}
	return id, nil
}

// ReadMessage acquires and parses the tag's NDEF message. The
// high-level path is tried first when tr offers one; its failures
// are swallowed and the APDU path decides the outcome.
func (r *Reader) ReadMessage(ctx context.Context, tr Transceiver) (*ndef.Message, error) {
	if src, ok := tr.(NDEFSource); ok {
		if file, err := src.ReadNDEFFile(ctx); err == nil && len(file) > 0 {
			if msg, err := ndef.DecodeFile(file); err == nil {
				return msg, nil
			}
		}
	}

	file, err := r.readNDEFFileRaw(ctx, tr)
	if err != nil {
		return nil, err
	}

	msg, err := ndef.DecodeFile(file)
	if err != nil {
		if errors.Is(err, ndef.ErrEmptyFile) {
			return nil, &ProtocolError{Step: "decode ndef", Err: ErrNDEFFileEmpty}
		}
		return nil, &ProtocolError{Step: "decode ndef", Err: fmt.Errorf("%w: %w", ErrNDEFMalformed, err)}
	}
	return msg, nil
}

// readNDEFFileRaw performs the fixed APDU sequence of the T4T read
// procedure. Every step must answer 9000 before the next runs; any
// failure aborts the attempt with no partial result.
func (r *Reader) readNDEFFileRaw(ctx context.Context, tr Transceiver) ([]byte, error) {
	if err := r.selectApplication(ctx, tr); err != nil {
		return nil, err
	}

	fileID := r.resolveNDEFFileID(ctx, tr)

	if err := r.selectFile(ctx, tr, "select ndef file", fileID); err != nil {
		return nil, err
	}

	nlen, err := r.readNLEN(ctx, tr)
	if err != nil {
		return nil, err
	}

	body, err := r.readChunks(ctx, tr, nlen)
	if err != nil {
		return nil, err
	}

	file := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(file, uint16(nlen))
	copy(file[2:], body)
	return file, nil
}

func (r *Reader) selectApplication(ctx context.Context, tr Transceiver) error {
	cmd := selectCommand(SelectByName, 0x00, NDEFApplicationAID)
	_, err := r.transceive(ctx, tr, "select application", cmd)
	return err
}

// resolveNDEFFileID reads and parses the CC to learn the NDEF file
// id. Any failure falls back to the well-known default: plenty of
// tags ship a sloppy or absent CC and still serve file E1 04. The
// leniency is deliberate, not required by the mapping spec.
func (r *Reader) resolveNDEFFileID(ctx context.Context, tr Transceiver) []byte {
	if err := r.selectFile(ctx, tr, "select cc", CCFileID); err != nil {
		return DefaultNDEFFileID
	}

	resp, err := r.transceive(ctx, tr, "read cc", readBinaryCommand(0, CCLen))
	if err != nil {
		return DefaultNDEFFileID
	}

	cc, err := ParseCC(resp.Data)
	if err != nil {
		return DefaultNDEFFileID
	}
	return cc.NDEFFileID
}

func (r *Reader) selectFile(ctx context.Context, tr Transceiver, step string, fileID []byte) error {
	cmd := selectCommand(SelectByFileID, 0x0C, fileID)
	_, err := r.transceive(ctx, tr, step, cmd)
	return err
}

func (r *Reader) readNLEN(ctx context.Context, tr Transceiver) (int, error) {
	resp, err := r.transceive(ctx, tr, "read nlen", readBinaryCommand(0, 2))
	if err != nil {
		return 0, err
	}
	if len(resp.Data) < 2 {
		return 0, &ProtocolError{Step: "read nlen", Err: ErrShortRead}
	}

	nlen := int(binary.BigEndian.Uint16(resp.Data))
	if nlen == 0 {
		return 0, &ProtocolError{Step: "read nlen", Err: ErrNDEFFileEmpty}
	}
	return nlen, nil
}

// readChunks assembles exactly nlen bytes of message data, reading at
// increasing offsets past the 2-byte length prefix. Chunk size is
// capped at MaxChunkSize; a short tag finishing in one chunk and a
// long one needing many are indistinguishable in the result.
func (r *Reader) readChunks(ctx context.Context, tr Transceiver, nlen int) ([]byte, error) {
	out := make([]byte, 0, nlen)
	for offset := 2; len(out) < nlen; {
		want := nlen - len(out)
		if want > MaxChunkSize {
			want = MaxChunkSize
		}

		resp, err := r.transceive(ctx, tr, "read ndef chunk", readBinaryCommand(offset, want))
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 || len(resp.Data) > want {
			return nil, &ProtocolError{Step: "read ndef chunk", Err: ErrShortRead}
		}

		out = append(out, resp.Data...)
		offset += len(resp.Data)
	}
	return out, nil
}

// transceive runs one APDU exchange and enforces a 9000 status.
// Channel errors surface as TransportError, peer refusals as
// ProtocolError carrying the status word.
func (r *Reader) transceive(ctx context.Context, tr Transceiver, step string, cmd *CommandAPDU) (*ResponseAPDU, error) {
	raw, err := tr.Transceive(ctx, cmd.Bytes())
	if err != nil {
		return nil, NewTransportError(step, string(tr.Type()), err)
	}

	resp, err := ParseResponseAPDU(raw)
	if err != nil {
		return nil, &ProtocolError{Step: step, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, newStatusError(step, resp.SW)
	}
	return resp, nil
}
