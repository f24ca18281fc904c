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

// Package testutils provides shared helpers for the engine's tests.
package testutils

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/dispatchkit/httpdispatch/internal/pkg/core/reqctx"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/routing"
)

// LocalAddr is a loopback remote address for requests that should be
// treated as local callers.
const LocalAddr = "127.0.0.1:54321"

// RemoteAddr is a non-loopback remote address for requests that
// should be treated as remote callers.
const RemoteAddr = "203.0.113.7:54321"

// NoopHandler returns a handler that succeeds without touching the
// response.
func NoopHandler() reqctx.Handler {
	return func(req *reqctx.Request, res *reqctx.ResponseSink) error {
		return nil
	}
}

// CountingHandler returns a handler that increments *count on every
// invocation and succeeds.
func CountingHandler(count *int) reqctx.Handler {
	return func(req *reqctx.Request, res *reqctx.ResponseSink) error {
		*count++
		return nil
	}
}

// FailingHandler returns a handler that fails with the given error.
func FailingHandler(err error) reqctx.Handler {
	return func(req *reqctx.Request, res *reqctx.ResponseSink) error {
		return err
	}
}

// PanickingHandler returns a handler that panics with the given value.
func PanickingHandler(v interface{}) reqctx.Handler {
	return func(req *reqctx.Request, res *reqctx.ResponseSink) error {
		panic(v)
	}
}

// BuildTable registers every (key, verb) pair with a noop handler and
// builds the table. Fails the build on registration errors via panic,
// which is fine in tests.
func BuildTable(pairs map[string][]routing.Verb) *routing.Table {
	b := routing.NewBuilder()
	for key, verbs := range pairs {
		for _, v := range verbs {
			if err := b.Register(key, v, NoopHandler()); err != nil {
				panic(fmt.Sprintf("BuildTable: %v", err))
			}
		}
	}
	return b.Build()
}

// NewRequest builds an httptest request with a controllable remote
// address.
func NewRequest(method, target, remoteAddr string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = remoteAddr
	return r
}

// FreePort asks the kernel for an unused TCP port on loopback. There
// is a window between closing the probe listener and reusing the
// port, acceptable in tests.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WaitForCondition polls condition until it is true or the timeout
// elapses.
func WaitForCondition(condition func() bool, timeout time.Duration, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}
