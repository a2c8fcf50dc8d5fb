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
	"errors"
	"fmt"
)

// Error categories for reader-side failure handling.
var (
	// Protocol violations - malformed or out-of-spec bytes from the peer.
	ErrAPDUTooShort  = errors.New("apdu too short")
	ErrAPDUMalformed = errors.New("apdu body length inconsistent")
	ErrCCMalformed   = errors.New("capability container malformed")
	ErrNDEFMalformed = errors.New("ndef message malformed")
	ErrNDEFFileEmpty = errors.New("ndef file empty")
	ErrShortRead     = errors.New("tag returned fewer bytes than requested")

	// Transport failures - the channel itself broke.
	ErrTransceiveFailed = errors.New("transceive failed")
	ErrTransportClosed  = errors.New("transport is closed")

	// Not found - the channel worked but the content was absent.
	ErrNotOurTag    = errors.New("tag carries no recognized identifier")
	ErrNoIdentity   = errors.New("no signed-in identifier available")
	ErrFileNotFound = errors.New("file not found on tag")

	// Unsupported - the peer rejected the operation outright.
	ErrCommandRejected = errors.New("command rejected by tag")
)

// ErrorKind is the coarse classification every error crossing the
// engine boundary resolves to.
type ErrorKind int

const (
	// KindProtocolViolation is malformed APDU/TLV/NDEF data from the peer.
	KindProtocolViolation ErrorKind = iota
	// KindTransportFailure is a failed or interrupted transceive call.
	KindTransportFailure
	// KindNotFound is an absent file, AID, or identifier.
	KindNotFound
	// KindUnsupported is an instruction or class the peer refused.
	KindUnsupported
)

// String returns a short label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindProtocolViolation:
		return "protocol violation"
	case KindTransportFailure:
		return "transport failure"
	case KindNotFound:
		return "not found"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ProtocolError records a protocol step that ended with a non-success
// status word or undecodable bytes.
type ProtocolError struct {
	Err  error
	Step string
	SW   uint16
}

func (e *ProtocolError) Error() string {
	if e.SW != 0 {
		return fmt.Sprintf("%s: status %04X", e.Step, e.SW)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	// Map the status word back onto the sentinel taxonomy so callers
	// can use errors.Is without inspecting SW values.
	switch e.SW {
	case SWFileNotFound:
		return ErrFileNotFound
	case SWWrongParameters:
		return ErrAPDUMalformed
	case SWInsNotSupported, SWClassNotSupported:
		return ErrCommandRejected
	default:
		return ErrCommandRejected
	}
}

// newStatusError wraps a non-success status word from a named step.
func newStatusError(step string, sw uint16) *ProtocolError {
	return &ProtocolError{Step: step, SW: sw}
}

// TransportError wraps a failed transceive with the operation and
// transport identity for diagnostics.
type TransportError struct {
	Err  error
	Op   string
	Port string
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a transport-level failure.
func NewTransportError(op, port string, err error) *TransportError {
	return &TransportError{Op: op, Port: port, Err: err}
}

// Kind classifies an error from either engine into the four outcome
// categories. Unknown errors default to transport failures: they come
// from below the protocol layer or they would have been translated.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotOurTag),
		errors.Is(err, ErrNoIdentity),
		errors.Is(err, ErrFileNotFound):
		return KindNotFound
	case errors.Is(err, ErrCommandRejected):
		return KindUnsupported
	case errors.Is(err, ErrAPDUTooShort),
		errors.Is(err, ErrAPDUMalformed),
		errors.Is(err, ErrCCMalformed),
		errors.Is(err, ErrNDEFMalformed),
		errors.Is(err, ErrNDEFFileEmpty),
		errors.Is(err, ErrShortRead):
		return KindProtocolViolation
	default:
		return KindTransportFailure
	}
}

// IsNotFound reports whether err is a "content absent" outcome, as
// opposed to a broken channel.
func IsNotFound(err error) bool {
	return err != nil && Kind(err) == KindNotFound
}

// IsTransportFailure reports whether err means the radio/transceive
// channel itself failed.
func IsTransportFailure(err error) bool {
	return err != nil && Kind(err) == KindTransportFailure
}
