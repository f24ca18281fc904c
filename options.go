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

// Option adjusts an engine's configuration at construction time.
type Option func(*Engine)

// WithAddress sets the listen hostname and port.
func WithAddress(hostname string, port int) Option {
	return func(e *Engine) {
		e.cfg.Server.Hostname = hostname
		e.cfg.Server.Port = port
	}
}

// WithPortOffset shifts the listen port, for multi-instance
// deployments sharing one base config.
func WithPortOffset(offset int) Option {
	return func(e *Engine) {
		e.cfg.Server.Offset = offset
	}
}

// WithMatchMode selects the path-matching rule. The default is
// MatchLegacy for parity with existing deployments.
func WithMatchMode(mode MatchMode) Option {
	return func(e *Engine) {
		e.cfg.Routing.Mode = mode.String()
	}
}

// WithCORS enables CORS wrapping of the dispatcher.
func WithCORS(cfg CORSConfig) Option {
	return func(e *Engine) {
		e.cfg.CORS = cfg
	}
}

// WithMetrics toggles Prometheus request metrics and the /metrics
// endpoint.
func WithMetrics(enabled bool) Option {
	return func(e *Engine) {
		e.cfg.Metrics.Enabled = enabled
	}
}
