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

package uart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	t4t "github.com/ZaparooProject/go-t4t"
)

// tgInitParams are the TgInitAsTarget parameters for an ISO 14443-4
// (PICC-only) target: mode byte, MIFARE params (SENS_RES, NFCID1t,
// SEL_RES 0x20 = ISO-DEP), FeliCa params, NFCID3t, and empty general
// and historical bytes.
var tgInitParams = []byte{
	0x05,       // PICC only, passive only
	0x04, 0x00, // SENS_RES
	0x12, 0x34, 0x56, // NFCID1t
	0x20, // SEL_RES: ISO-DEP support
	0x01, 0xFE, 0x05, 0x01, 0x86, 0x04, 0x02, 0x02,
	0x03, 0x00, // FeliCa params
	0xFD, 0x68, 0x7B, 0x18, 0x92, 0x10, 0x9A, 0xC9, 0x2A, 0xFE, // NFCID3t
	0x00, // LEN Gt
	0x00, // LEN Tk
}

// Serve presents responder as an ISO-DEP card until ctx is done. Each
// reader session runs TgInitAsTarget, then shuttles APDUs through
// TgGetData/TgSetData into the responder. When the reader releases
// the target or the RF field drops, the responder is deactivated and
// the next session awaited. Errors other than link loss end the loop.
func (t *Transport) Serve(ctx context.Context, responder t4t.Responder) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.initAsTarget(ctx); err != nil {
			if errors.Is(err, errPortTimeout) {
				continue // no reader yet
			}
			return err
		}

		log.Debug().Msg("uart target activated by reader")
		err := t.serveSession(responder)
		responder.Deactivate()
		if err != nil {
			return err
		}
	}
}

// initAsTarget waits for a reader to activate us. The PN532 blocks in
// TgInitAsTarget until a field appears, so the read loop polls with
// short timeouts to stay cancellable.
func (t *Transport) initAsTarget(ctx context.Context) error {
	frame, err := buildFrame(cmdTgInitAsTarget, tgInitParams)
	if err != nil {
		return err
	}
	if _, err := t.port.Write(frame); err != nil {
		return fmt.Errorf("uart: write: %w", err)
	}
	extra, err := t.waitAck()
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := t.readFrame(500*time.Millisecond, extra)
		extra = nil
		if err == nil {
			if data[0] != cmdTgInitAsTarget+1 {
				return fmt.Errorf("%w: response code %02X", errFrameCorrupt, data[0])
			}
			return nil
		}
		if !errors.Is(err, errPortTimeout) {
			return err
		}
	}
}

// errLinkDropped marks the reader releasing the target or leaving the
// field, which ends a session without being a failure.
var errLinkDropped = errors.New("uart: reader dropped the link")

// checkTargetStatus decodes the status byte leading a TgGetData or
// TgSetData answer.
func checkTargetStatus(answer []byte) error {
	if len(answer) < 1 {
		return errShortAnswer
	}
	switch status := answer[0] & 0x3F; status {
	case statusOK:
		return nil
	case statusTargetReleased, statusCardDisappeared:
		return errLinkDropped
	default:
		return fmt.Errorf("%w: %02X", errChipStatus, status)
	}
}

// serveSession pumps APDUs for one activated session. A link-loss
// status ends the session without error.
func (t *Transport) serveSession(responder t4t.Responder) error {
	for {
		apdu, err := t.command(cmdTgGetData, nil)
		if err != nil {
			return err
		}
		if err := checkTargetStatus(apdu); err != nil {
			if errors.Is(err, errLinkDropped) {
				return nil
			}
			return err
		}

		resp := responder.ProcessAPDU(apdu[1:])

		setResp, err := t.command(cmdTgSetData, resp)
		if err != nil {
			return err
		}
		if err := checkTargetStatus(setResp); err != nil {
			if errors.Is(err, errLinkDropped) {
				return nil
			}
			return err
		}
	}
}
