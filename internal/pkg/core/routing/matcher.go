/*
Copyright 2026 The Dispatchkit Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package routing

import (
	"fmt"
	"strings"
)

// MatchMode selects the path-matching rule.
type MatchMode int

const (
	// MatchLegacy reproduces the historical best-match rule exactly,
	// including its acceptance of partial (divergent) matches as
	// winning candidates and the unknown-method-to-GET fallback. Use
	// it when behavioral parity with existing deployments matters.
	MatchLegacy MatchMode = iota
	// MatchStrict only ever selects keys that are true prefixes of
	// the request path, longest first, and rejects unknown methods.
	MatchStrict
)

func (m MatchMode) String() string {
	switch m {
	case MatchLegacy:
		return "legacy"
	case MatchStrict:
		return "strict"
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// ParseMatchMode maps a config string to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "", "legacy":
		return MatchLegacy, nil
	case "strict":
		return MatchStrict, nil
	}
	return MatchLegacy, fmt.Errorf("unknown routing mode %q", s)
}

// Resolve selects the route key governing path, or reports no match.
// Path is the request path with the leading slash already stripped;
// it is compared as an opaque string.
//
// Resolution is deterministic: a fixed table, path and mode always
// select the same key. Legacy mode depends on the table's sorted scan
// order for that, because its tie-break is first-seen-wins.
func (t *Table) Resolve(path string, mode MatchMode) (string, Entry, bool) {
	if entry, ok := t.entries[path]; ok {
		return path, entry, true
	}
	if mode == MatchStrict {
		return t.resolveStrict(path)
	}
	return t.resolveLegacy(path)
}

// resolveLegacy scans every key and keeps the candidate with the
// longest run of leading characters shared with the path. A key that
// diverges from the path part-way still counts with its divergence
// index as the length, so the selected key is not guaranteed to be a
// true prefix of the path. That is a defect of the original selection
// rule, preserved here verbatim: the update comparison is strictly
// greater-than, exact matches short-circuit in Resolve, and keys
// shorter than the best length so far are skipped without a walk.
func (t *Table) resolveLegacy(path string) (string, Entry, bool) {
	bestLength := -1
	bestKey := ""
	for _, key := range t.keys {
		if len(key) < bestLength {
			// Cannot beat the current best; skipping must not
			// change the outcome, only the work done.
			continue
		}
		if l := sharedPrefixLen(path, key); l > bestLength {
			bestLength = l
			bestKey = key
		}
	}
	if bestLength == -1 {
		return "", nil, false
	}
	return bestKey, t.entries[bestKey], true
}

// resolveStrict picks the longest key that path actually starts with.
func (t *Table) resolveStrict(path string) (string, Entry, bool) {
	bestLength := -1
	bestKey := ""
	for _, key := range t.keys {
		if len(key) > bestLength && strings.HasPrefix(path, key) {
			bestLength = len(key)
			bestKey = key
		}
	}
	if bestLength == -1 {
		return "", nil, false
	}
	return bestKey, t.entries[bestKey], true
}

// sharedPrefixLen walks key character by character and returns the
// index of the first divergence from path, or len(key) if the walk
// completes.
func sharedPrefixLen(path, key string) int {
	i := 0
	for i < len(key) && i < len(path) && path[i] == key[i] {
		i++
	}
	return i
}
