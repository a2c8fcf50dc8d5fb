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

// Package uart bridges the Type 4 Tag engines onto a PN532 attached
// over a serial port. As initiator it activates a tag and tunnels
// APDUs through InDataExchange; in target mode it presents the local
// Emulator as an ISO-DEP card to whatever reader taps it.
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	t4t "github.com/ZaparooProject/go-t4t"
)

// PN532 command codes used by the bridge.
const (
	cmdSamConfiguration    = 0x14
	cmdInListPassiveTarget = 0x4A
	cmdInDataExchange      = 0x40
	cmdInRelease           = 0x52
	cmdTgInitAsTarget      = 0x8C
	cmdTgGetData           = 0x86
	cmdTgSetData           = 0x8E
)

// PN532 status codes the bridge reacts to (UM0701-02 section 7.1).
const (
	statusOK              = 0x00
	statusTargetReleased  = 0x29
	statusCardDisappeared = 0x2B
)

// Bridge errors.
var (
	ErrNoTarget    = errors.New("uart: no tag in field")
	ErrTargetLost  = errors.New("uart: tag left the field")
	errChipStatus  = errors.New("uart: chip reported error status")
	errShortAnswer = errors.New("uart: response too short")
	errPortTimeout = errors.New("uart: read timeout")
)

const readTimeout = 50 * time.Millisecond

// Transport is a PN532 serial bridge implementing t4t.Transceiver.
type Transport struct {
	port     serial.Port
	portName string
	mu       sync.Mutex
	active   bool // a passive target is activated for InDataExchange
	closed   bool
}

// New opens the serial port and wakes the PN532 into normal mode.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("uart: set read timeout: %w", err)
	}

	t := &Transport{port: port, portName: portName}
	if err := t.wakeUp(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// wakeUp raises the chip from low-VBAT mode and configures the SAM to
// normal mode, which also disarms the internal timeout unit.
func (t *Transport) wakeUp() error {
	// Long preamble gives the chip time to enumerate the host wakeup.
	wake := append(bytes.Repeat([]byte{0x55}, 2), bytes.Repeat([]byte{0x00}, 14)...)
	if _, err := t.port.Write(wake); err != nil {
		return fmt.Errorf("uart: wakeup write: %w", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err := t.command(cmdSamConfiguration, []byte{0x01, 0x14, 0x01})
	if err != nil {
		return fmt.Errorf("uart: SAM configuration: %w", err)
	}
	return nil
}

// WaitForTag polls for an ISO 14443-A tag entering the field and
// activates it for APDU exchange. It returns the tag's UID.
func (t *Transport) WaitForTag(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		uid, err := t.listPassiveTarget()
		if err == nil {
			log.Debug().Hex("uid", uid).Msg("uart tag activated")
			return uid, nil
		}
		if !errors.Is(err, ErrNoTarget) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// listPassiveTarget runs one InListPassiveTarget round for a single
// 106 kbps type A target.
func (t *Transport) listPassiveTarget() ([]byte, error) {
	resp, err := t.command(cmdInListPassiveTarget, []byte{0x01, 0x00})
	if err != nil {
		return nil, err
	}
	// NbTg, Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID1...
	if len(resp) < 1 || resp[0] == 0 {
		return nil, ErrNoTarget
	}
	if len(resp) < 7 {
		return nil, fmt.Errorf("%w: %d bytes of target data", errShortAnswer, len(resp))
	}

	uidLen := int(resp[6])
	if len(resp) < 7+uidLen {
		return nil, fmt.Errorf("%w: NFCID truncated", errShortAnswer)
	}

	t.mu.Lock()
	t.active = true
	t.mu.Unlock()
	return append([]byte(nil), resp[7:7+uidLen]...), nil
}

// Transceive implements t4t.Transceiver by tunnelling the APDU
// through InDataExchange to the activated target.
func (t *Transport) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	active, closed := t.active, t.closed
	t.mu.Unlock()
	if closed {
		return nil, t4t.ErrTransportClosed
	}
	if !active {
		return nil, ErrNoTarget
	}

	args := make([]byte, 1+len(apdu))
	args[0] = 0x01 // logical target number from InListPassiveTarget
	copy(args[1:], apdu)

	resp, err := t.command(cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, errShortAnswer
	}

	switch status := resp[0] & 0x3F; status {
	case statusOK:
		return resp[1:], nil
	case statusTargetReleased, statusCardDisappeared:
		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: status %02X", ErrTargetLost, status)
	default:
		return nil, fmt.Errorf("%w: %02X", errChipStatus, status)
	}
}

// Release drops the activated target so another can be polled.
func (t *Transport) Release() error {
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
	_, err := t.command(cmdInRelease, []byte{0x01})
	return err
}

// Close implements t4t.Transceiver.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if err := t.port.Close(); err != nil {
		return fmt.Errorf("uart: close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected implements t4t.Transceiver.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type implements t4t.Transceiver.
func (*Transport) Type() t4t.TransportType { return t4t.TransportUART }

// command writes one command frame, waits for the ACK, then reads and
// unwraps the response frame, checking the response code pairs with
// the command.
func (t *Transport) command(cmd byte, args []byte) ([]byte, error) {
	frame, err := buildFrame(cmd, args)
	if err != nil {
		return nil, err
	}

	if _, err := t.port.Write(frame); err != nil {
		return nil, fmt.Errorf("uart: write: %w", err)
	}

	extra, err := t.waitAck()
	if err != nil {
		return nil, err
	}

	data, err := t.readFrame(2*time.Second, extra)
	if err != nil {
		return nil, err
	}
	if data[0] != cmd+1 {
		return nil, fmt.Errorf("%w: response code %02X for command %02X", errFrameCorrupt, data[0], cmd)
	}
	return data[1:], nil
}

// waitAck consumes bytes until the 6-byte ACK frame appears. Bytes
// that arrived after the ACK belong to the response frame and are
// returned so the caller can seed the frame read with them; the chip
// routinely coalesces both into one burst.
func (t *Transport) waitAck() ([]byte, error) {
	deadline := time.Now().Add(time.Second)
	var window []byte
	buf := make([]byte, 16)

	for time.Now().Before(deadline) {
		n, err := t.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("uart: read ack: %w", err)
		}
		if n == 0 {
			continue
		}
		window = append(window, buf[:n]...)
		if i := bytes.Index(window, ackFrame); i >= 0 {
			return append([]byte(nil), window[i+len(ackFrame):]...), nil
		}
		if len(window) > 64 {
			window = window[len(window)-8:]
		}
	}
	return nil, errNoAck
}

// readFrame accumulates serial bytes, starting from any pre-read
// leftover, until a complete information frame parses out of them.
func (t *Transport) readFrame(timeout time.Duration, pre []byte) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	acc := append([]byte(nil), pre...)
	buf := make([]byte, 256)

	for {
		if start := bytes.Index(acc, []byte{startCode1, startCode2}); start >= 0 {
			data, err := parseFrame(acc[start:])
			switch {
			case err == nil:
				return data, nil
			case isTruncated(acc[start:]):
				// Frame still arriving, keep reading.
			default:
				// Corrupt beyond repair; resync past this start code.
				acc = acc[start+2:]
				continue
			}
		}

		if !time.Now().Before(deadline) {
			return nil, errPortTimeout
		}
		n, err := t.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("uart: read frame: %w", err)
		}
		if n > 0 {
			acc = append(acc, buf[:n]...)
		}
	}
}

// isTruncated reports whether buf could still become a valid frame
// with more bytes.
func isTruncated(buf []byte) bool {
	if len(buf) < 4 {
		return true
	}
	return len(buf) < 4+int(buf[2])+1
}
