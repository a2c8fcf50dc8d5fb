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
	"errors"

	"github.com/ZaparooProject/go-t4t/internal/syncutil"
)

// Transceiver is the initiator-side channel to a remote tag: one APDU
// out, one response in. Implementations exist for PC/SC readers and
// for a PN532 bridged over serial.
type Transceiver interface {
	// Transceive sends a raw command APDU and returns the raw
	// response, including the trailing status word.
	Transceive(ctx context.Context, apdu []byte) ([]byte, error)

	// Close releases the underlying channel.
	Close() error

	// IsConnected reports whether the channel is usable.
	IsConnected() bool

	// Type identifies the transport backend.
	Type() TransportType
}

// TransportType identifies a Transceiver backend.
type TransportType string

const (
	// TransportPCSC is a PC/SC smart card reader.
	TransportPCSC TransportType = "pcsc"
	// TransportUART is a PN532 bridged over a serial port.
	TransportUART TransportType = "uart"
	// TransportLoopback is an in-process emulator-backed channel.
	TransportLoopback TransportType = "loopback"
	// TransportMock is a scripted transport for testing.
	TransportMock TransportType = "mock"
)

// NDEFSource is the optional high-level read path a transport (or tag
// handle) may offer on platforms whose NFC stack parses NDEF itself.
// The reader engine prefers it and silently falls back to raw APDUs
// when it fails.
type NDEFSource interface {
	// ReadNDEFFile returns NDEF file contents (NLEN prefix included),
	// either freshly read or cached from tag discovery.
	ReadNDEFFile(ctx context.Context) ([]byte, error)
}

// exchange is a scripted request/response pair for MockTransceiver.
type exchange struct {
	request  []byte
	response []byte
	err      error
}

// MockTransceiver replays a scripted APDU conversation for tests.
// Each Transceive consumes the next script entry; a non-nil expected
// request must match the bytes actually sent.
type MockTransceiver struct {
	script    []exchange
	pos       int
	mu        syncutil.Mutex
	connected bool
}

// NewMockTransceiver creates an empty, connected mock.
func NewMockTransceiver() *MockTransceiver {
	return &MockTransceiver{connected: true}
}

// Expect appends a request/response pair to the script. A nil request
// matches any command.
func (m *MockTransceiver) Expect(request, response []byte) *MockTransceiver {
	m.mu.Lock()
	m.script = append(m.script, exchange{request: request, response: response})
	m.mu.Unlock()
	return m
}

// ExpectError appends a failing exchange to the script.
func (m *MockTransceiver) ExpectError(request []byte, err error) *MockTransceiver {
	m.mu.Lock()
	m.script = append(m.script, exchange{request: request, err: err})
	m.mu.Unlock()
	return m
}

// Transceive implements Transceiver.
func (m *MockTransceiver) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrTransportClosed
	}
	if m.pos >= len(m.script) {
		return nil, errors.New("mock: unexpected transceive past end of script")
	}

	step := m.script[m.pos]
	m.pos++

	if step.request != nil && !bytes.Equal(step.request, apdu) {
		return nil, errors.New("mock: transceive did not match scripted request")
	}
	if step.err != nil {
		return nil, step.err
	}
	return append([]byte(nil), step.response...), nil
}

// Close implements Transceiver.
func (m *MockTransceiver) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transceiver.
func (m *MockTransceiver) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Transceiver.
func (*MockTransceiver) Type() TransportType { return TransportMock }

// Exhausted reports whether the whole script was consumed.
func (m *MockTransceiver) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos == len(m.script)
}
