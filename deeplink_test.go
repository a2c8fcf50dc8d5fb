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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDeepLink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "zaplink://connect/abc123", BuildDeepLink("", "abc123"))
	assert.Equal(t, "zaplink://connect/abc123", BuildDeepLink("zaplink", "abc123"))
	assert.Equal(t, "myapp://connect/u9", BuildDeepLink("myapp", "u9"))
}

func TestExtractIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		scheme     string
		wantID     string
		candidates []string
		wantOK     bool
	}{
		{
			name:       "plain match",
			candidates: []string{"zaplink://connect/abc123"},
			wantID:     "abc123",
			wantOK:     true,
		},
		{
			name:       "surrounding whitespace trimmed",
			candidates: []string{"  zaplink://connect/abc123\n"},
			wantID:     "abc123",
			wantOK:     true,
		},
		{
			name:       "first match among foreign records",
			candidates: []string{"hello", "https://example.com", "zaplink://connect/winner", "zaplink://connect/second"},
			wantID:     "winner",
			wantOK:     true,
		},
		{
			name:       "empty identifier segment skipped",
			candidates: []string{"zaplink://connect/", "zaplink://connect/real"},
			wantID:     "real",
			wantOK:     true,
		},
		{
			name:       "custom scheme",
			scheme:     "myapp",
			candidates: []string{"zaplink://connect/no", "myapp://connect/yes"},
			wantID:     "yes",
			wantOK:     true,
		},
		{
			name:       "scheme mismatch",
			candidates: []string{"otherapp://connect/abc"},
			wantOK:     false,
		},
		{
			name:       "wrong path",
			candidates: []string{"zaplink://login/abc"},
			wantOK:     false,
		},
		{
			name:       "prefix must anchor at the start",
			candidates: []string{"see zaplink://connect/abc"},
			wantOK:     false,
		},
		{
			name:   "no candidates",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, ok := ExtractIdentifier(tt.scheme, tt.candidates...)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestBuildExtractRoundTrip(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"a", "user-42", "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"} {
		got, ok := ExtractIdentifier("", BuildDeepLink("", id))
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}
}
