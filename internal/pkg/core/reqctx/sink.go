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

package reqctx

import "net/http"

// ResponseSink wraps an http.ResponseWriter with settable status and
// status text and a close-once finalization step. The status line is
// committed on the first Write or on Close, whichever comes first;
// after that, Status and StatusText are no-ops.
type ResponseSink struct {
	w          http.ResponseWriter
	status     int
	statusText string
	committed  bool
	closed     bool
}

// NewResponseSink wraps w. The status defaults to 200 OK.
func NewResponseSink(w http.ResponseWriter) *ResponseSink {
	return &ResponseSink{w: w, status: http.StatusOK}
}

// Status sets the response status code.
func (s *ResponseSink) Status(code int) {
	if s.committed {
		return
	}
	s.status = code
}

// StatusText sets the status code together with a plain-text body that
// is written when the response is closed, unless the handler writes a
// body of its own first.
func (s *ResponseSink) StatusText(code int, text string) {
	if s.committed {
		return
	}
	s.status = code
	s.statusText = text
}

// Header returns the response header map. Mutations after the status
// line is committed have no effect, per net/http semantics.
func (s *ResponseSink) Header() http.Header {
	return s.w.Header()
}

// Write commits the status line if needed and writes b to the body.
func (s *ResponseSink) Write(b []byte) (int, error) {
	if s.closed {
		return 0, http.ErrBodyNotAllowed
	}
	s.commit()
	return s.w.Write(b)
}

// Close finalizes the response exactly once. If no body was written,
// the pending status text (if any) is emitted as a text/plain body in
// the http.Error shape. Subsequent calls are no-ops.
func (s *ResponseSink) Close() {
	if s.closed {
		return
	}
	if !s.committed && s.statusText != "" {
		s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.w.Header().Set("X-Content-Type-Options", "nosniff")
		s.commit()
		s.w.Write([]byte(s.statusText + "\n"))
	} else {
		s.commit()
	}
	s.closed = true
}

// Closed reports whether the sink has been finalized.
func (s *ResponseSink) Closed() bool {
	return s.closed
}

// Committed reports whether the status line has been sent.
func (s *ResponseSink) Committed() bool {
	return s.committed
}

// StatusCode returns the status code that was, or will be, sent.
func (s *ResponseSink) StatusCode() int {
	return s.status
}

func (s *ResponseSink) commit() {
	if s.committed {
		return
	}
	s.w.WriteHeader(s.status)
	s.committed = true
}
