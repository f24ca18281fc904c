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
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dispatchkit/httpdispatch/internal/pkg/config"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/dispatch"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/reqctx"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/routing"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/server"
	"github.com/dispatchkit/httpdispatch/internal/pkg/loggerfactory"
	"github.com/dispatchkit/httpdispatch/internal/pkg/metrics"
)

const componentName = "engine"

// Aliases for the types hosts interact with.
type (
	// Handler is the callback invoked on a route and verb match.
	Handler = reqctx.Handler
	// Request is the inbound request descriptor handed to handlers.
	Request = reqctx.Request
	// ResponseSink is the close-once response writer handed to
	// handlers.
	ResponseSink = reqctx.ResponseSink
	// MatchMode selects the path-matching rule.
	MatchMode = routing.MatchMode
	// Config is the deployment configuration for one engine.
	Config = config.Config
	// CORSConfig configures the optional CORS wrapping.
	CORSConfig = config.CORSConfig
)

const (
	// MatchLegacy reproduces the historical best-match selection,
	// partial-match acceptance and unknown-method-to-GET fallback
	// included.
	MatchLegacy = routing.MatchLegacy
	// MatchStrict selects only true path prefixes and rejects
	// unknown methods.
	MatchStrict = routing.MatchStrict
)

var (
	// ErrDuplicateRoute reports a duplicate (route key, verb)
	// registration, a configuration error that should be fatal at
	// startup.
	ErrDuplicateRoute = routing.ErrDuplicateRoute
	// ErrEngineStarted reports a registration attempted after Start;
	// the route table is immutable while serving.
	ErrEngineStarted = errors.New("engine already started: routes must be registered before Start")
	// ErrEngineStopped reports a call on an engine that was stopped.
	// Engines are single-use; build a new one to serve again.
	ErrEngineStopped = errors.New("engine has been stopped")
)

type engineState int

const (
	stateSetup engineState = iota
	stateStarted
	stateStopped
)

// Engine is the embeddable dispatcher. Register routes during setup,
// then Start; the route table is frozen into an immutable snapshot at
// that point and read without locks while serving.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	builder *routing.Builder
	cfg     *config.Config
	svc     *server.Service
	logger  *slog.Logger
}

// New creates an engine with the default configuration, adjusted by
// the given options.
func New(opts ...Option) *Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Hostname: "localhost",
			Port:     8280,
		},
	}
	e := &Engine{
		builder: routing.NewBuilder(),
		cfg:     cfg,
	}
	e.logger = loggerfactory.GetLogger(componentName, e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig creates an engine from a loaded configuration.
func NewFromConfig(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		builder: routing.NewBuilder(),
		cfg:     cfg,
	}
	e.logger = loggerfactory.GetLogger(componentName, e)
	return e, nil
}

// UpdateLogger reissues the engine logger after a config reload.
func (e *Engine) UpdateLogger() {
	e.logger = loggerfactory.GetLogger(componentName, e)
}

// Get registers a handler for GET requests on key.
func (e *Engine) Get(key string, h Handler) error {
	return e.register(key, routing.GET, h)
}

// Post registers a handler for POST requests on key.
func (e *Engine) Post(key string, h Handler) error {
	return e.register(key, routing.POST, h)
}

// Put registers a handler for PUT requests on key.
func (e *Engine) Put(key string, h Handler) error {
	return e.register(key, routing.PUT, h)
}

// Delete registers a handler for DELETE requests on key.
func (e *Engine) Delete(key string, h Handler) error {
	return e.register(key, routing.DELETE, h)
}

func (e *Engine) register(key string, v routing.Verb, h Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateStarted:
		return ErrEngineStarted
	case stateStopped:
		return ErrEngineStopped
	}
	return e.builder.Register(key, v, h)
}

// Start freezes the route table and begins accepting requests on the
// configured address. The accept loop and per-request goroutines
// belong to net/http; a slow handler never blocks acceptance. Start
// after Stop returns ErrEngineStopped: the engine wraps
// net/http.Server, which is single-use after shutdown.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case stateStarted:
		return server.ErrServerStarted
	case stateStopped:
		return ErrEngineStopped
	}

	svc, err := e.assemble()
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	e.svc = svc
	e.state = stateStarted
	e.logger.Info("engine started",
		slog.String("address", svc.Addr()),
		slog.Int("routes", e.builder.Len()))
	return nil
}

// Stop stops accepting new requests and releases the listener.
// In-flight handler invocations are not cancelled. Idempotent.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateStopped {
		return nil
	}
	state := e.state
	e.state = stateStopped
	if state != stateStarted {
		return nil
	}
	err := e.svc.Stop()
	e.logger.Info("engine stopped")
	return err
}

// Handler assembles and returns the engine's root handler from the
// routes registered so far, without starting a listener. Hosts that
// own their listener mount this; later registrations are not seen by
// the returned handler.
func (e *Engine) Handler() (http.Handler, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateStopped {
		return nil, ErrEngineStopped
	}
	svc, err := e.assemble()
	if err != nil {
		return nil, err
	}
	return svc.Handler(), nil
}

// assemble builds the immutable table, the dispatcher and the service.
// Callers hold e.mu.
func (e *Engine) assemble() (*server.Service, error) {
	mode, err := routing.ParseMatchMode(e.cfg.Routing.Mode)
	if err != nil {
		return nil, err
	}
	table := e.builder.Build()
	dispatcher := dispatch.New(table, mode)

	var meters *metrics.Metrics
	if e.cfg.Metrics.Enabled {
		meters = metrics.New("")
	}
	return server.New(e.cfg, dispatcher, table, meters), nil
}
