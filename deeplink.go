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

import "strings"

// DefaultScheme is the deep-link scheme written to and expected from
// tags: zaplink://connect/{identifier}.
const DefaultScheme = "zaplink"

// deepLinkPath is the fixed path component between scheme and
// identifier.
const deepLinkPath = "://connect/"

// BuildDeepLink renders the deep link for an identifier. An empty
// scheme means DefaultScheme.
func BuildDeepLink(scheme, id string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return scheme + deepLinkPath + id
}

// ExtractIdentifier scans candidate strings for the first deep link
// of the given scheme with a non-empty identifier segment and returns
// that identifier, whitespace-trimmed. A false result is the ordinary
// "not our tag" outcome, not an error: messages legitimately carry
// records this application does not understand.
func ExtractIdentifier(scheme string, candidates ...string) (string, bool) {
	if scheme == "" {
		scheme = DefaultScheme
	}
	prefix := scheme + deepLinkPath

	for _, c := range candidates {
		rest, ok := strings.CutPrefix(strings.TrimSpace(c), prefix)
		if !ok {
			continue
		}
		if id := strings.TrimSpace(rest); id != "" {
			return id, true
		}
	}
	return "", false
}
