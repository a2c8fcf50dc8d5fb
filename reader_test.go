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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-t4t/pkg/ndef"
)

// fakeTag is a scriptless tag double: it serves arbitrary CC and NDEF
// file bytes through real T4T select/read semantics, recording the
// chunk sizes the reader asks for. A nil cc answers the CC select with
// file-not-found.
type fakeTag struct {
	cc       []byte
	ndefFile []byte
	fileID   []byte
	selected []byte
	chunkLes []int
}

func newFakeTag(cc, ndefFile []byte) *fakeTag {
	return &fakeTag{cc: cc, ndefFile: ndefFile, fileID: DefaultNDEFFileID}
}

func (f *fakeTag) Transceive(_ context.Context, apdu []byte) ([]byte, error) {
	cmd, err := ParseCommandAPDU(apdu)
	if err != nil {
		return nil, fmt.Errorf("fake tag got garbage: %w", err)
	}

	switch {
	case cmd.Ins == InsSelect && cmd.P1 == SelectByName:
		if !bytes.Equal(cmd.Data, NDEFApplicationAID) {
			return statusResponse(SWFileNotFound), nil
		}
		return statusResponse(SWSuccess), nil

	case cmd.Ins == InsSelect && cmd.P1 == SelectByFileID:
		switch {
		case bytes.Equal(cmd.Data, CCFileID) && f.cc != nil:
			f.selected = f.cc
		case bytes.Equal(cmd.Data, f.fileID):
			f.selected = f.ndefFile
		default:
			f.selected = nil
			return statusResponse(SWFileNotFound), nil
		}
		return statusResponse(SWSuccess), nil

	case cmd.Ins == InsReadBinary:
		if f.selected == nil {
			return statusResponse(SWFileNotFound), nil
		}
		offset := cmd.Offset()
		if offset > len(f.selected) {
			return statusResponse(SWWrongParameters), nil
		}
		length := 256
		if cmd.HasLe() {
			length = cmd.Le
		}
		if offset >= 2 && bytes.Equal(f.selected, f.ndefFile) {
			f.chunkLes = append(f.chunkLes, length)
		}
		if remaining := len(f.selected) - offset; length > remaining {
			length = remaining
		}
		resp := &ResponseAPDU{Data: f.selected[offset : offset+length], SW: SWSuccess}
		return resp.Bytes(), nil

	default:
		return statusResponse(SWInsNotSupported), nil
	}
}

func (*fakeTag) Close() error        { return nil }
func (*fakeTag) IsConnected() bool   { return true }
func (*fakeTag) Type() TransportType { return TransportMock }

// rawNDEFFile builds file bytes with an arbitrary patterned body.
func rawNDEFFile(nlen int) []byte {
	file := make([]byte, 2+nlen)
	binary.BigEndian.PutUint16(file, uint16(nlen))
	for i := 0; i < nlen; i++ {
		file[2+i] = byte(i)
	}
	return file
}

func TestReaderChunkedReassembly(t *testing.T) {
	t.Parallel()

	// Sizes straddling the chunk ceiling on both sides.
	for _, nlen := range []int{1, 2, 239, 240, 241, 480, 481, 999} {
		nlen := nlen
		t.Run(fmt.Sprintf("nlen %d", nlen), func(t *testing.T) {
			t.Parallel()

			want := rawNDEFFile(nlen)
			tag := newFakeTag(buildCC(DefaultNDEFFileID), want)

			r := NewReader(ReaderConfig{})
			got, err := r.readNDEFFileRaw(context.Background(), tag)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("reassembled file mismatch (-want +got):\n%s", diff)
			}

			wantChunks := (nlen + MaxChunkSize - 1) / MaxChunkSize
			assert.Len(t, tag.chunkLes, wantChunks)
			for _, le := range tag.chunkLes {
				assert.LessOrEqual(t, le, MaxChunkSize)
			}
		})
	}
}

func TestReaderEmptyNDEFFile(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(buildCC(DefaultNDEFFileID), rawNDEFFile(0))
	r := NewReader(ReaderConfig{})

	_, err := r.ReadMessage(context.Background(), tag)
	require.ErrorIs(t, err, ErrNDEFFileEmpty)
	assert.Equal(t, KindProtocolViolation, Kind(err))
}

func TestReaderUndecodableNDEF(t *testing.T) {
	t.Parallel()

	// A patterned body is not a valid NDEF message.
	tag := newFakeTag(buildCC(DefaultNDEFFileID), rawNDEFFile(16))
	r := NewReader(ReaderConfig{})

	_, err := r.ReadMessage(context.Background(), tag)
	require.ErrorIs(t, err, ErrNDEFMalformed)
	assert.Equal(t, KindProtocolViolation, Kind(err))
}

func TestReaderCCNamesAlternateFile(t *testing.T) {
	t.Parallel()

	fileID := []byte{0xE1, 0x10}
	file, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/alt")))
	require.NoError(t, err)

	tag := newFakeTag(buildCC(fileID), file)
	tag.fileID = fileID

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "alt", id)
}

func TestReaderFallsBackWithoutCC(t *testing.T) {
	t.Parallel()

	file, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/nocc")))
	require.NoError(t, err)

	// CC select fails; the default file id must still be tried.
	tag := newFakeTag(nil, file)

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "nocc", id)
}

func TestReaderFallsBackOnGarbageCC(t *testing.T) {
	t.Parallel()

	file, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/badcc")))
	require.NoError(t, err)

	tag := newFakeTag([]byte{0xFF, 0xFF, 0xFF}, file)

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "badcc", id)
}

func TestReaderForeignTag(t *testing.T) {
	t.Parallel()

	// Speaks the protocol perfectly, carries somebody else's URI.
	file, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("https://example.com/menu")))
	require.NoError(t, err)
	tag := newFakeTag(buildCC(DefaultNDEFFileID), file)

	r := NewReader(ReaderConfig{})
	_, err = r.ReadIdentifier(context.Background(), tag)
	require.ErrorIs(t, err, ErrNotOurTag)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransportFailure(err))
}

func TestReaderScriptedHappyPath(t *testing.T) {
	t.Parallel()

	file, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/scripted")))
	require.NoError(t, err)
	require.Less(t, len(file), MaxChunkSize)
	nlen := len(file) - 2

	mock := NewMockTransceiver().
		Expect(selectCommand(SelectByName, 0x00, NDEFApplicationAID).Bytes(), statusResponse(SWSuccess)).
		Expect(selectCommand(SelectByFileID, 0x0C, CCFileID).Bytes(), statusResponse(SWSuccess)).
		Expect(readBinaryCommand(0, CCLen).Bytes(),
			(&ResponseAPDU{Data: buildCC(DefaultNDEFFileID), SW: SWSuccess}).Bytes()).
		Expect(selectCommand(SelectByFileID, 0x0C, DefaultNDEFFileID).Bytes(), statusResponse(SWSuccess)).
		Expect(readBinaryCommand(0, 2).Bytes(),
			(&ResponseAPDU{Data: file[:2], SW: SWSuccess}).Bytes()).
		Expect(readBinaryCommand(2, nlen).Bytes(),
			(&ResponseAPDU{Data: file[2:], SW: SWSuccess}).Bytes())

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, "scripted", id)
	assert.True(t, mock.Exhausted())
}

func TestReaderAIDRejected(t *testing.T) {
	t.Parallel()

	mock := NewMockTransceiver().
		Expect(nil, statusResponse(SWFileNotFound))

	r := NewReader(ReaderConfig{})
	_, err := r.ReadIdentifier(context.Background(), mock)
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransportFailure(err))

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, SWFileNotFound, perr.SW)
	assert.Equal(t, "select application", perr.Step)
}

func TestReaderTransportFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("card yanked")
	mock := NewMockTransceiver().
		Expect(nil, statusResponse(SWSuccess)).
		ExpectError(nil, cause)

	r := NewReader(ReaderConfig{})
	_, err := r.ReadIdentifier(context.Background(), mock)
	require.ErrorIs(t, err, cause)
	assert.True(t, IsTransportFailure(err))

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, string(TransportMock), terr.Port)
}

func TestReaderUnparsableResponse(t *testing.T) {
	t.Parallel()

	mock := NewMockTransceiver().
		Expect(nil, []byte{0x90}) // one byte is not a response

	r := NewReader(ReaderConfig{})
	_, err := r.ReadIdentifier(context.Background(), mock)
	require.ErrorIs(t, err, ErrAPDUTooShort)
	assert.Equal(t, KindProtocolViolation, Kind(err))
}

func TestReaderShortNLEN(t *testing.T) {
	t.Parallel()

	mock := NewMockTransceiver().
		Expect(nil, statusResponse(SWSuccess)).
		Expect(nil, statusResponse(SWSuccess)).
		Expect(nil, (&ResponseAPDU{Data: buildCC(DefaultNDEFFileID), SW: SWSuccess}).Bytes()).
		Expect(nil, statusResponse(SWSuccess)).
		Expect(nil, (&ResponseAPDU{Data: []byte{0x00}, SW: SWSuccess}).Bytes())

	r := NewReader(ReaderConfig{})
	_, err := r.ReadIdentifier(context.Background(), mock)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestReaderOversizedChunk(t *testing.T) {
	t.Parallel()

	// The tag answers a 3-byte chunk request with 5 bytes.
	mock := NewMockTransceiver().
		Expect(nil, statusResponse(SWSuccess)).
		Expect(nil, statusResponse(SWSuccess)).
		Expect(nil, (&ResponseAPDU{Data: buildCC(DefaultNDEFFileID), SW: SWSuccess}).Bytes()).
		Expect(nil, statusResponse(SWSuccess)).
		Expect(nil, (&ResponseAPDU{Data: []byte{0x00, 0x03}, SW: SWSuccess}).Bytes()).
		Expect(nil, (&ResponseAPDU{Data: []byte{1, 2, 3, 4, 5}, SW: SWSuccess}).Bytes())

	r := NewReader(ReaderConfig{})
	_, err := r.ReadIdentifier(context.Background(), mock)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestReaderCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(ReaderConfig{})
	_, err := r.ReadIdentifier(ctx, NewMockTransceiver())
	require.ErrorIs(t, err, context.Canceled)
}

// ndefSourceTag wraps a Transceiver with a high-level NDEF read.
type ndefSourceTag struct {
	Transceiver
	file []byte
	err  error
}

func (s *ndefSourceTag) ReadNDEFFile(context.Context) ([]byte, error) {
	return s.file, s.err
}

func TestReaderPrefersHighLevelPath(t *testing.T) {
	t.Parallel()

	file, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/hl")))
	require.NoError(t, err)

	// The mock has no script; any APDU would fail the test.
	tag := &ndefSourceTag{Transceiver: NewMockTransceiver(), file: file}

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "hl", id)
}

func TestReaderFallsBackWhenHighLevelFails(t *testing.T) {
	t.Parallel()

	want, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/fallback")))
	require.NoError(t, err)

	inner := newFakeTag(buildCC(DefaultNDEFFileID), want)
	tag := &ndefSourceTag{Transceiver: inner, err: errors.New("platform stack has no cached NDEF")}

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "fallback", id)
}

func TestReaderFallsBackWhenHighLevelGivesGarbage(t *testing.T) {
	t.Parallel()

	want, err := ndef.EncodeFile(ndef.NewMessage(ndef.NewURIRecord("zaplink://connect/apdu")))
	require.NoError(t, err)

	inner := newFakeTag(buildCC(DefaultNDEFFileID), want)
	tag := &ndefSourceTag{Transceiver: inner, file: []byte{0x00}}

	r := NewReader(ReaderConfig{})
	id, err := r.ReadIdentifier(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "apdu", id)
}
