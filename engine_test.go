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

package httpdispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchkit/httpdispatch/internal/pkg/testutils"
)

func TestEngineRegistrationBeforeStart(t *testing.T) {
	e := New()
	require.NoError(t, e.Get("users", func(req *Request, res *ResponseSink) error { return nil }))
	require.NoError(t, e.Post("users", func(req *Request, res *ResponseSink) error { return nil }))
	require.NoError(t, e.Put("orders", func(req *Request, res *ResponseSink) error { return nil }))
	require.NoError(t, e.Delete("orders", func(req *Request, res *ResponseSink) error { return nil }))

	err := e.Get("users", func(req *Request, res *ResponseSink) error { return nil })
	assert.ErrorIs(t, err, ErrDuplicateRoute)
}

func TestEngineHandlerSnapshot(t *testing.T) {
	e := New()
	require.NoError(t, e.Get("ping", func(req *Request, res *ResponseSink) error {
		res.Write([]byte("pong"))
		return nil
	}))

	handler, err := e.Handler()
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	// Routes registered after the snapshot are not visible to it:
	// "later" falls through to legacy best-match against the old
	// table and lands on the "ping" handler.
	require.NoError(t, e.Get("later", func(req *Request, res *ResponseSink) error {
		res.Write([]byte("from-later"))
		return nil
	}))
	resp, err = http.Get(srv.URL + "/later")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
}

func TestEngineStrictModeEndToEnd(t *testing.T) {
	e := New(WithMatchMode(MatchStrict))
	require.NoError(t, e.Get("ping", func(req *Request, res *ResponseSink) error {
		res.Write([]byte("pong"))
		return nil
	}))

	handler, err := e.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/definitely-not-registered")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEngineLifecycle(t *testing.T) {
	port, err := testutils.FreePort()
	require.NoError(t, err)

	e := New(WithAddress("127.0.0.1", port))
	var invocations atomic.Int64
	require.NoError(t, e.Get("users", func(req *Request, res *ResponseSink) error {
		invocations.Add(1)
		res.Write([]byte("ok"))
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	url := fmt.Sprintf("http://127.0.0.1:%d/users", port)
	up := testutils.WaitForCondition(func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)
	require.True(t, up, "engine did not come up on %s", url)
	assert.GreaterOrEqual(t, invocations.Load(), int64(1))

	// Registration is frozen while serving.
	err = e.Post("users", func(req *Request, res *ResponseSink) error { return nil })
	assert.ErrorIs(t, err, ErrEngineStarted)

	require.NoError(t, e.Stop())
	assert.NoError(t, e.Stop(), "Stop is idempotent")

	// Engines are single-use.
	assert.ErrorIs(t, e.Start(ctx), ErrEngineStopped)
	assert.ErrorIs(t, e.Get("late", func(req *Request, res *ResponseSink) error { return nil }), ErrEngineStopped)
}

func TestEngineWithPortOffset(t *testing.T) {
	e := New(WithAddress("localhost", 8280), WithPortOffset(15))
	assert.Equal(t, "localhost:8295", e.cfg.Server.Addr())
}

func TestNewFromConfigValidates(t *testing.T) {
	cfg := &Config{}
	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
}

func TestEngineMetricsEndpoint(t *testing.T) {
	e := New(WithMetrics(true))
	require.NoError(t, e.Get("ping", func(req *Request, res *ResponseSink) error { return nil }))

	handler, err := e.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dispatch_requests_total")
}
