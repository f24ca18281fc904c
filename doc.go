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

// Package httpdispatch is an embeddable HTTP request dispatcher:
// callback-style routing without a full web framework. A host process
// registers handlers per route key and verb during setup, then starts
// the engine; incoming paths are matched against the registered keys
// with a best-prefix rule and the matching handler is invoked.
// Routing misses map to 404, verb misses to 405 and handler failures
// to 503; a failure never escapes to the accept loop.
//
//	engine := httpdispatch.New(httpdispatch.WithAddress("localhost", 8280))
//	engine.Get("users", func(req *httpdispatch.Request, res *httpdispatch.ResponseSink) error {
//		res.Write([]byte("hello"))
//		return nil
//	})
//	engine.Start(ctx)
//	defer engine.Stop()
//
// The default MatchLegacy mode reproduces the historical selection
// rule exactly, including its acceptance of partially matching keys;
// MatchStrict restricts selection to true prefixes of the request
// path. See the routing package for the details of both rules.
package httpdispatch
