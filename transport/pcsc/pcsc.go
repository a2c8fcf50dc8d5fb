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

// Package pcsc provides a t4t.Transceiver backed by a PC/SC smart
// card reader. A contactless reader presents an ISO-DEP tag in the
// field as a connected card whose Transmit is exactly the APDU
// transceive the reader engine needs.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ebfe/scard"
	"github.com/rs/zerolog/log"

	t4t "github.com/ZaparooProject/go-t4t"
)

// Transport is a PC/SC backed Transceiver. One Transport owns one
// card connection; create a new one per presented tag.
type Transport struct {
	ctx    *scard.Context
	card   *scard.Card
	reader string
}

// Open establishes a PC/SC context and connects to the card on the
// named reader. An empty name picks the first reader that has a card;
// a non-empty name matches by substring, the way pcsc_scan names are
// usually quoted.
func Open(readerName string) (*Transport, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		_ = ctx.Release()
		return nil, fmt.Errorf("pcsc: list readers: %w", err)
	}
	if len(readers) == 0 {
		_ = ctx.Release()
		return nil, errors.New("pcsc: no readers present")
	}

	name, err := pickReader(readers, readerName)
	if err != nil {
		_ = ctx.Release()
		return nil, err
	}

	// T=0 or T=1 explicitly; some readers reject ProtocolAny.
	card, err := ctx.Connect(name, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		_ = ctx.Release()
		return nil, fmt.Errorf("pcsc: connect %s: %w", name, err)
	}

	log.Debug().Str("reader", name).Msg("pcsc transport connected")
	return &Transport{ctx: ctx, card: card, reader: name}, nil
}

func pickReader(readers []string, want string) (string, error) {
	if want == "" {
		return readers[0], nil
	}
	for _, r := range readers {
		if strings.Contains(r, want) {
			return r, nil
		}
	}
	return "", fmt.Errorf("pcsc: no reader matching %q", want)
}

// Reader returns the connected reader's name.
func (t *Transport) Reader() string { return t.reader }

// Transceive implements t4t.Transceiver.
func (t *Transport) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.card == nil {
		return nil, t4t.ErrTransportClosed
	}

	log.Debug().Hex("tx", apdu).Msg("pcsc transmit")
	resp, err := t.card.Transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("pcsc: transmit: %w", err)
	}
	log.Debug().Hex("rx", resp).Msg("pcsc response")
	return resp, nil
}

// Close implements t4t.Transceiver.
func (t *Transport) Close() error {
	var firstErr error
	if t.card != nil {
		if err := t.card.Disconnect(scard.LeaveCard); err != nil {
			firstErr = fmt.Errorf("pcsc: disconnect: %w", err)
		}
		t.card = nil
	}
	if t.ctx != nil {
		if err := t.ctx.Release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pcsc: release context: %w", err)
		}
		t.ctx = nil
	}
	return firstErr
}

// IsConnected implements t4t.Transceiver.
func (t *Transport) IsConnected() bool {
	if t.card == nil {
		return false
	}
	_, err := t.card.Status()
	return err == nil
}

// Type implements t4t.Transceiver.
func (*Transport) Type() t4t.TransportType { return t4t.TransportPCSC }
