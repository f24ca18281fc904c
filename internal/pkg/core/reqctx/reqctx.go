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

// Package reqctx carries the per-request context handed to handlers:
// a read-only view of the inbound HTTP request and a close-once
// response sink over the underlying response writer.
package reqctx

import (
	"net"
	"net/http"

	"github.com/google/uuid"
)

// Handler is the callback invoked when a route and verb match. The
// handler owns the response status and body on the success path; a
// non-nil error tells the dispatcher the invocation failed.
type Handler func(*Request, *ResponseSink) error

// Request is the inbound request descriptor seen by handlers.
type Request struct {
	// ID correlates log lines for one dispatch.
	ID     string
	Method string
	// Path is the raw request path as received, leading slash included.
	Path string
	// IsLocal reports whether the caller is a loopback/local peer.
	// Diagnostic payloads are only ever produced for local callers.
	IsLocal bool
	// HTTP exposes the underlying request for hosts that need headers
	// or the body. Nil in some test setups.
	HTTP *http.Request
}

// NewRequest builds a Request descriptor from a parsed HTTP request.
func NewRequest(r *http.Request) *Request {
	return &Request{
		ID:      uuid.NewString(),
		Method:  r.Method,
		Path:    r.URL.Path,
		IsLocal: IsLocalAddr(r.RemoteAddr),
		HTTP:    r,
	}
}

// IsLocalAddr reports whether a listener-reported remote address is a
// loopback peer.
func IsLocalAddr(remoteAddr string) bool {
	if remoteAddr == "" {
		return false
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
