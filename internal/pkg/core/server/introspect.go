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
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v2"

	"github.com/dispatchkit/httpdispatch/internal/pkg/core/reqctx"
)

// routeInfo is one route table row in the /routez listing.
type routeInfo struct {
	Key   string   `json:"key" yaml:"key"`
	Verbs []string `json:"verbs" yaml:"verbs"`
}

// handleRoutez serves the registered route table, JSON by default and
// YAML with ?format=yaml. The table is internal detail, so remote
// callers get a plain 404 as if the endpoint did not exist.
func (s *Service) handleRoutez(w http.ResponseWriter, r *http.Request) {
	if !reqctx.IsLocalAddr(r.RemoteAddr) {
		http.NotFound(w, r)
		return
	}

	routes := make([]routeInfo, 0, s.table.Len())
	for _, key := range s.table.Keys() {
		entry, _ := s.table.Lookup(key)
		verbs := make([]string, 0, len(entry))
		for _, v := range entry.Verbs() {
			verbs = append(verbs, v.String())
		}
		routes = append(routes, routeInfo{Key: key, Verbs: verbs})
	}
	listing := map[string][]routeInfo{"routes": routes}

	if r.URL.Query().Get("format") == "yaml" {
		body, err := yaml.Marshal(listing)
		if err != nil {
			http.Error(w, "Failed to marshal route table", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(listing)
}
