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

// Package loopback wires the reader engine directly to an emulator
// instance, so the full APDU dance runs in-process. Tests use it to
// exercise both engines against each other, optionally with injected
// faults.
package loopback

import (
	"context"
	"errors"

	t4t "github.com/ZaparooProject/go-t4t"
)

// ErrInjected is returned by a transceive selected for fault
// injection.
var ErrInjected = errors.New("loopback: injected transport fault")

// Transceiver routes APDUs to a Responder (normally a *t4t.Emulator)
// and counts exchanges. FailAfter(n) makes the n-th subsequent
// exchange fail, simulating the radio dropping mid-procedure.
type Transceiver struct {
	responder t4t.Responder
	exchanges int
	failAt    int
	closed    bool
}

// New creates a loopback channel to the given responder.
func New(responder t4t.Responder) *Transceiver {
	return &Transceiver{responder: responder, failAt: -1}
}

// FailAfter arms one-shot fault injection: the (n+1)-th exchange from
// now returns ErrInjected and, as hardware would, deactivates the
// responder. Later exchanges go through again.
func (l *Transceiver) FailAfter(n int) {
	l.failAt = l.exchanges + n
}

// Exchanges returns how many APDU round trips have completed.
func (l *Transceiver) Exchanges() int { return l.exchanges }

// Transceive implements t4t.Transceiver.
func (l *Transceiver) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.closed {
		return nil, t4t.ErrTransportClosed
	}

	if l.failAt >= 0 && l.exchanges == l.failAt {
		l.failAt = -1
		l.responder.Deactivate()
		return nil, ErrInjected
	}

	l.exchanges++
	return l.responder.ProcessAPDU(apdu), nil
}

// Close implements t4t.Transceiver. The responder is deactivated the
// way a field drop would.
func (l *Transceiver) Close() error {
	if !l.closed {
		l.closed = true
		l.responder.Deactivate()
	}
	return nil
}

// IsConnected implements t4t.Transceiver.
func (l *Transceiver) IsConnected() bool { return !l.closed }

// Type implements t4t.Transceiver.
func (*Transceiver) Type() t4t.TransportType { return t4t.TransportLoopback }
