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

// Package routing holds the route registry: a builder used during
// setup and the immutable table the dispatcher reads at request time.
// Route keys are opaque strings matched against the request path with
// the leading slash stripped; they are not URL-decoded or normalized.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dispatchkit/httpdispatch/internal/pkg/core/reqctx"
)

// Verb is one of the four HTTP methods the engine routes on.
type Verb int

const (
	GET Verb = iota
	POST
	PUT
	DELETE
)

var verbNames = map[Verb]string{
	GET:    "GET",
	POST:   "POST",
	PUT:    "PUT",
	DELETE: "DELETE",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Verb(%d)", int(v))
}

// Valid reports whether v is one of the four routed verbs.
func (v Verb) Valid() bool {
	_, ok := verbNames[v]
	return ok
}

// ParseVerb maps an HTTP method string to a Verb. Only the four exact
// method names are accepted.
func ParseVerb(method string) (Verb, bool) {
	switch strings.ToUpper(method) {
	case "GET":
		return GET, true
	case "POST":
		return POST, true
	case "PUT":
		return PUT, true
	case "DELETE":
		return DELETE, true
	}
	return GET, false
}

// VerbForMethod maps a request method to the verb used for handler
// lookup. In legacy mode an unrecognized method falls back to GET, a
// quirk of the original selection rule kept for parity. Strict mode
// reports no verb instead, which the dispatcher turns into a 405.
func VerbForMethod(method string, mode MatchMode) (Verb, bool) {
	v, ok := ParseVerb(method)
	if ok {
		return v, true
	}
	if mode == MatchLegacy {
		return GET, true
	}
	return GET, false
}

// Entry maps verbs to handlers for a single route key. Every entry in
// a built table has at least one verb.
type Entry map[Verb]reqctx.Handler

// Verbs returns the entry's verbs in a fixed order.
func (e Entry) Verbs() []Verb {
	verbs := make([]Verb, 0, len(e))
	for v := range e {
		verbs = append(verbs, v)
	}
	sort.Slice(verbs, func(i, j int) bool { return verbs[i] < verbs[j] })
	return verbs
}

// ErrDuplicateRoute is returned when the same (route key, verb) pair
// is registered twice. Duplicate registration is a configuration error
// and should be fatal at startup.
var ErrDuplicateRoute = errors.New("route already registered for this verb")

// Builder accumulates route registrations during setup. It is not
// goroutine safe; registration is expected to finish before serving
// begins.
type Builder struct {
	entries map[string]Entry
}

// NewBuilder returns an empty route builder.
func NewBuilder() *Builder {
	return &Builder{entries: make(map[string]Entry)}
}

// Register adds a handler for (key, verb).
func (b *Builder) Register(key string, v Verb, h reqctx.Handler) error {
	if key == "" {
		return errors.New("route key must not be empty")
	}
	if !v.Valid() {
		return fmt.Errorf("invalid verb %d for route %q", int(v), key)
	}
	if h == nil {
		return fmt.Errorf("nil handler for route %q", key)
	}
	entry, ok := b.entries[key]
	if !ok {
		entry = make(Entry)
		b.entries[key] = entry
	}
	if _, exists := entry[v]; exists {
		return fmt.Errorf("%w: %s %q", ErrDuplicateRoute, v, key)
	}
	entry[v] = h
	return nil
}

// Len returns the number of registered route keys.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build snapshots the registrations into an immutable table. The
// builder can keep accumulating afterwards; the table does not see
// later registrations.
func (b *Builder) Build() *Table {
	entries := make(map[string]Entry, len(b.entries))
	keys := make([]string, 0, len(b.entries))
	for key, entry := range b.entries {
		copied := make(Entry, len(entry))
		for v, h := range entry {
			copied[v] = h
		}
		entries[key] = copied
		keys = append(keys, key)
	}
	// Keys are scanned in sorted order so that legacy best-match
	// selection is deterministic across processes.
	sort.Strings(keys)
	return &Table{entries: entries, keys: keys}
}

// Table is the immutable route registry read at request time. It is
// safe for concurrent use because it is never mutated after Build.
type Table struct {
	entries map[string]Entry
	keys    []string
}

// Lookup returns the entry registered under exactly key.
func (t *Table) Lookup(key string) (Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Keys returns the registered route keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Len returns the number of registered route keys.
func (t *Table) Len() int {
	return len(t.keys)
}
