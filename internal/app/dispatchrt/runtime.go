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

// Package dispatchrt is the reference host bootstrap: it shows the
// intended embedding wiring for processes that run the dispatcher
// standalone. Configuration is read from a conf directory next to the
// executable, as in classic server layouts (bin/ and conf/ siblings).
package dispatchrt

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dispatchkit/httpdispatch"
	"github.com/dispatchkit/httpdispatch/internal/pkg/config"
)

// RegisterFunc populates an engine's routes before it starts.
type RegisterFunc func(*httpdispatch.Engine) error

// Run boots an engine with no routes registered; every request is
// answered by the dispatcher's own miss handling. Mostly useful for
// smoke-testing a deployment's config.
func Run(ctx context.Context) error {
	return RunWithRegister(ctx, nil)
}

// RunWithRegister loads configuration, lets the host register its
// routes, starts the engine, and blocks until ctx is done, then shuts
// down gracefully.
func RunWithRegister(ctx context.Context, register RegisterFunc) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error getting executable path: %w", err)
	}
	confPath := filepath.Join(filepath.Dir(exePath), "..", "conf")

	cfg, err := config.Initialize(confPath)
	if err != nil {
		return fmt.Errorf("initialization error: %w", err)
	}

	engine, err := httpdispatch.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	if register != nil {
		if err := register(engine); err != nil {
			return fmt.Errorf("route registration error: %w", err)
		}
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}
	log.Printf("Server started in: %v", time.Since(start))

	<-ctx.Done()
	if err := engine.Stop(); err != nil {
		return err
	}
	log.Println("HTTP server shutdown gracefully")
	return nil
}
