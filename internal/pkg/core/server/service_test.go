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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/dispatchkit/httpdispatch/internal/pkg/config"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/dispatch"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/routing"
	"github.com/dispatchkit/httpdispatch/internal/pkg/metrics"
	"github.com/dispatchkit/httpdispatch/internal/pkg/testutils"
)

func testConfig(port int) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Hostname: "127.0.0.1", Port: port},
	}
}

func newService(t *testing.T, cfg *config.Config, table *routing.Table, meters *metrics.Metrics) *Service {
	t.Helper()
	dispatcher := dispatch.New(table, routing.MatchLegacy)
	return New(cfg, dispatcher, table, meters)
}

func TestLivezEndpoint(t *testing.T) {
	svc := newService(t, testConfig(8280), routing.NewBuilder().Build(), nil)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, testutils.NewRequest("GET", "/livez", testutils.RemoteAddr))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UP", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRoutezListsRegisteredRoutes(t *testing.T) {
	table := testutils.BuildTable(map[string][]routing.Verb{
		"users":  {routing.GET, routing.POST},
		"orders": {routing.DELETE},
	})
	svc := newService(t, testConfig(8280), table, nil)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, testutils.NewRequest("GET", "/routez", testutils.LocalAddr))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Routes []struct {
			Key   string   `json:"key"`
			Verbs []string `json:"verbs"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Routes, 2)
	assert.Equal(t, "orders", body.Routes[0].Key)
	assert.Equal(t, []string{"DELETE"}, body.Routes[0].Verbs)
	assert.Equal(t, "users", body.Routes[1].Key)
	assert.Equal(t, []string{"GET", "POST"}, body.Routes[1].Verbs)
}

func TestRoutezYAMLFormat(t *testing.T) {
	table := testutils.BuildTable(map[string][]routing.Verb{
		"users": {routing.GET},
	})
	svc := newService(t, testConfig(8280), table, nil)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, testutils.NewRequest("GET", "/routez?format=yaml", testutils.LocalAddr))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "yaml")
	var body map[string][]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["routes"], 1)
}

func TestRoutezHiddenFromRemoteCallers(t *testing.T) {
	table := testutils.BuildTable(map[string][]routing.Verb{
		"users": {routing.GET},
	})
	svc := newService(t, testConfig(8280), table, nil)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, testutils.NewRequest("GET", "/routez", testutils.RemoteAddr))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatcherMountedAtRoot(t *testing.T) {
	table := testutils.BuildTable(map[string][]routing.Verb{
		"users": {routing.GET},
	})
	svc := newService(t, testConfig(8280), table, nil)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, testutils.NewRequest("GET", "/users", testutils.RemoteAddr))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointMountedWhenEnabled(t *testing.T) {
	table := testutils.BuildTable(map[string][]routing.Verb{
		"users": {routing.GET},
	})
	svc := newService(t, testConfig(8280), table, metrics.New("dispatch_test_server"))

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, testutils.NewRequest("GET", "/metrics", testutils.LocalAddr))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSHeadersApplied(t *testing.T) {
	cfg := testConfig(8280)
	cfg.CORS = config.CORSConfig{
		Enabled:      true,
		AllowOrigins: []string{"https://app.example.com"},
		AllowMethods: []string{"GET", "POST"},
	}
	table := testutils.BuildTable(map[string][]routing.Verb{
		"users": {routing.GET},
	})
	svc := newService(t, cfg, table, nil)

	r := testutils.NewRequest("GET", "/users", testutils.RemoteAddr)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, r)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerLifecycle(t *testing.T) {
	port, err := testutils.FreePort()
	require.NoError(t, err)
	table := testutils.BuildTable(map[string][]routing.Verb{
		"ping": {routing.GET},
	})
	svc := newService(t, testConfig(port), table, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	url := fmt.Sprintf("http://127.0.0.1:%d/livez", port)
	up := testutils.WaitForCondition(func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)
	assert.True(t, up, "server did not come up on %s", url)

	// Second Start while running is rejected.
	assert.ErrorIs(t, svc.Start(ctx), ErrServerStarted)

	require.NoError(t, svc.Stop())
	// Stop is idempotent; restart is not supported.
	assert.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.Start(ctx), ErrServerStopped)
}
