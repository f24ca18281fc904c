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
	"net/http"

	"github.com/rs/cors"

	"github.com/dispatchkit/httpdispatch/internal/pkg/config"
)

// CORSMiddleware applies CORS headers based on the provided
// configuration using the rs/cors package. Preflight OPTIONS requests
// are answered by the middleware and never reach the dispatcher.
func CORSMiddleware(handler http.Handler, cfg config.CORSConfig) http.Handler {
	if !cfg.Enabled {
		return handler
	}

	options := cors.Options{
		AllowedOrigins:   cfg.AllowOrigins,
		AllowedMethods:   cfg.AllowMethods,
		AllowedHeaders:   cfg.AllowHeaders,
		ExposedHeaders:   cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	return cors.New(options).Handler(handler)
}
