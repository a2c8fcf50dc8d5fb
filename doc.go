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

// Package t4t implements both sides of the NFC Forum Type 4 Tag
// protocol over ISO 7816-4 APDUs.
//
// The Emulator answers SELECT and READ BINARY commands as a
// host-emulated tag, synthesizing a Capability Container and an NDEF
// file that deep-links to the currently signed-in identifier. The
// Reader drives the same exchange from the initiator side against a
// remote tag, preferring a platform-provided NDEF read and falling
// back to raw APDU transceiving with chunked reads.
//
// Transports live in transport/pcsc (desktop contactless readers) and
// transport/uart (a PN532 bridged over serial, including target mode
// for running the emulator on real radio hardware). The NDEF codec is
// pkg/ndef.
package t4t
