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

// Package dispatch runs one request through the routing table: route
// lookup, verb lookup, handler invocation, and outcome-to-status
// mapping. Every path through a dispatch finalizes the response
// exactly once, and nothing a handler does can escape to the accept
// loop.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/dispatchkit/httpdispatch/internal/pkg/core/reqctx"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/routing"
	"github.com/dispatchkit/httpdispatch/internal/pkg/loggerfactory"
)

const componentName = "dispatch"

const (
	statusTextNotFound    = "Not Found"
	statusTextNoVerb      = "No handler for this HTTP method"
	statusTextServerError = "Server Error"
)

// Dispatcher routes requests against an immutable table. It holds no
// per-request state, so one instance serves all in-flight requests.
type Dispatcher struct {
	table  *routing.Table
	mode   routing.MatchMode
	logger *slog.Logger
}

// New creates a dispatcher over a built routing table.
func New(table *routing.Table, mode routing.MatchMode) *Dispatcher {
	d := &Dispatcher{table: table, mode: mode}
	d.logger = loggerfactory.GetLogger(componentName, d)
	return d
}

// UpdateLogger reissues the dispatcher's logger after a config reload.
func (d *Dispatcher) UpdateLogger() {
	d.logger = loggerfactory.GetLogger(componentName, d)
}

// ServeHTTP dispatches one request. The listener calls this on its own
// goroutine per request, so a slow handler stalls only its own call.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := reqctx.NewRequest(r)
	sink := reqctx.NewResponseSink(w)
	defer sink.Close()

	// The path is matched as an opaque key with the leading slash
	// stripped; no URL decoding or normalization.
	path := strings.TrimPrefix(r.URL.Path, "/")

	key, entry, ok := d.table.Resolve(path, d.mode)
	if !ok {
		sink.StatusText(http.StatusNotFound, statusTextNotFound)
		return
	}

	verb, ok := routing.VerbForMethod(r.Method, d.mode)
	if !ok {
		sink.StatusText(http.StatusMethodNotAllowed, statusTextNoVerb)
		return
	}
	handler, ok := entry[verb]
	if !ok {
		sink.StatusText(http.StatusMethodNotAllowed, statusTextNoVerb)
		return
	}

	if stack, err := d.invoke(handler, req, sink); err != nil {
		d.failed(req, sink, key, verb, err, stack)
	}
}

// invoke calls the handler, converting a panic into an error so the
// dispatch state machine inspects one failure kind. The stack is
// captured at the panic site for local diagnostics.
func (d *Dispatcher) invoke(h reqctx.Handler, req *reqctx.Request, sink *reqctx.ResponseSink) (stack []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = debug.Stack()
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	err = h(req, sink)
	return
}

// diagnostic is the failure payload served to local callers only.
type diagnostic struct {
	Message string `json:"message"`
	Source  string `json:"source"`
	Stack   string `json:"stack,omitempty"`
}

// failed maps a handler failure to a 503 response. Local callers get a
// JSON diagnostic with message, source and stack; remote callers only
// ever see the bare status text.
func (d *Dispatcher) failed(req *reqctx.Request, sink *reqctx.ResponseSink, key string, verb routing.Verb, err error, stack []byte) {
	d.logger.Error("handler failed",
		slog.String("request_id", req.ID),
		slog.String("route", key),
		slog.String("verb", verb.String()),
		slog.String("error", err.Error()))

	if sink.Committed() {
		// The handler already sent the status line; the status can
		// no longer be rewritten. Close still runs exactly once.
		return
	}
	if !req.IsLocal {
		sink.StatusText(http.StatusServiceUnavailable, statusTextServerError)
		return
	}

	diag := diagnostic{
		Message: err.Error(),
		Source:  fmt.Sprintf("%s %s", verb, key),
		Stack:   string(stack),
	}
	body, marshalErr := json.Marshal(diag)
	if marshalErr != nil {
		sink.StatusText(http.StatusServiceUnavailable, statusTextServerError)
		return
	}
	sink.Header().Set("Content-Type", "application/json; charset=utf-8")
	sink.Status(http.StatusServiceUnavailable)
	sink.Write(body)
}
