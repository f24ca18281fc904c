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

// Package server is the lifecycle glue between the dispatcher and the
// platform HTTP listener (net/http): it owns the http.Server, the
// operational endpoints, and graceful shutdown. Connection accepting,
// request parsing and per-request goroutines are net/http's concern.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dispatchkit/httpdispatch/internal/pkg/config"
	"github.com/dispatchkit/httpdispatch/internal/pkg/core/routing"
	"github.com/dispatchkit/httpdispatch/internal/pkg/loggerfactory"
	"github.com/dispatchkit/httpdispatch/internal/pkg/metrics"
)

const componentName = "server"

const shutdownTimeout = 10 * time.Second

// ErrServerStopped is returned by Start after Stop has run. The
// service wraps net/http.Server, which cannot be reused after
// Shutdown, so a stopped service cannot be restarted.
var ErrServerStopped = errors.New("server has been stopped and cannot be restarted")

// ErrServerStarted is returned by Start when the service is already
// serving.
var ErrServerStarted = errors.New("server already started")

type serviceState int

const (
	stateIdle serviceState = iota
	stateRunning
	stateStopped
)

// Service runs the dispatcher behind an http.Server together with the
// /livez, /routez and optional /metrics endpoints.
type Service struct {
	mu      sync.Mutex
	state   serviceState
	server  *http.Server
	handler http.Handler
	addr    string
	table   *routing.Table
	logger  *slog.Logger
}

// New assembles the service. The dispatcher handles every path not
// claimed by an operational endpoint; CORS and metrics middleware are
// applied to it when configured. meters may be nil when metrics are
// disabled.
func New(cfg *config.Config, dispatcher http.Handler, table *routing.Table, meters *metrics.Metrics) *Service {
	s := &Service{
		addr:  cfg.Server.Addr(),
		table: table,
	}
	s.logger = loggerfactory.GetLogger(componentName, s)

	handler := dispatcher
	if meters != nil {
		handler = meters.Middleware(handler)
	}
	if cfg.CORS.Enabled {
		handler = CORSMiddleware(handler, cfg.CORS)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", s.handleLivez)
	mux.HandleFunc("/routez", s.handleRoutez)
	if meters != nil {
		mux.Handle("/metrics", meters.Handler())
	}
	mux.Handle("/", handler)
	s.handler = mux
	return s
}

// UpdateLogger reissues the service logger after a config reload.
func (s *Service) UpdateLogger() {
	s.logger = loggerfactory.GetLogger(componentName, s)
}

// Handler returns the assembled root handler. Hosts embedding the
// engine into their own listener can mount this instead of calling
// Start.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Service) Addr() string {
	return s.addr
}

// Start begins serving in a background goroutine. Acceptance and
// request parsing belong to net/http; each request is dispatched on
// its own goroutine, so handler execution never blocks the accept
// loop. Start on a running service or after Stop is an error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning:
		return ErrServerStarted
	case stateStopped:
		return ErrServerStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.handler,
	}
	s.state = stateRunning

	go func() {
		s.logger.Info("Starting HTTP server", slog.String("address", s.addr))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
		s.logger.Info("HTTP server stopped serving new connections")
	}()
	return nil
}

// Stop shuts the listener down gracefully. New connections stop being
// accepted; in-flight handler invocations are waited on up to the
// shutdown timeout but never cancelled. Stop is idempotent.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		s.state = stateStopped
		return nil
	}
	s.state = stateStopped

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownRelease()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// handleLivez is the liveness probe endpoint.
func (s *Service) handleLivez(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "UP",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
