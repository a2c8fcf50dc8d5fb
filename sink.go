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
	"time"

	"github.com/ZaparooProject/go-t4t/internal/syncutil"
)

// ReadResult is the outcome of one read-and-decode attempt, delivered
// to subscribers. Exactly one of Identifier and Err is set.
type ReadResult struct {
	At         time.Time
	Err        error
	Identifier string
}

// Broadcast fans read results out from the NFC callback context to
// application consumers without ever blocking the publisher. Each
// subscriber gets a buffered channel; a subscriber that does not
// drain in time drops events rather than stalling the engine. The
// most recent result is additionally kept in a latest-value cell, so
// a consumer arriving late can see where things stand. There is no
// replay beyond that one value.
type Broadcast struct {
	subs   map[int]chan ReadResult
	latest *ReadResult
	nextID int
	mu     syncutil.RWMutex
}

// NewBroadcast creates an empty broadcaster.
func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[int]chan ReadResult)}
}

// subscriberBuffer is how many undrained results a subscriber may lag
// behind before it starts missing events.
const subscriberBuffer = 4

// Subscribe registers a consumer. The returned cancel func must be
// called when the consumer goes away; the channel is closed then.
func (b *Broadcast) Subscribe() (<-chan ReadResult, func()) {
	ch := make(chan ReadResult, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a result to every subscriber, fire-and-forget.
// Sends never block: a full subscriber buffer means that subscriber
// misses this event. Safe to call from the platform's NFC callback.
func (b *Broadcast) Publish(res ReadResult) {
	if res.At.IsZero() {
		res.At = time.Now()
	}

	b.mu.Lock()
	b.latest = &res
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

// PublishIdentifier is shorthand for a successful read.
func (b *Broadcast) PublishIdentifier(id string) {
	b.Publish(ReadResult{Identifier: id})
}

// PublishError is shorthand for a failed read.
func (b *Broadcast) PublishError(err error) {
	b.Publish(ReadResult{Err: err})
}

// Latest returns the most recent result, if any read has completed.
func (b *Broadcast) Latest() (ReadResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return ReadResult{}, false
	}
	return *b.latest, true
}
