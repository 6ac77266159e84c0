/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package tracing

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Middleware opens one root span per inbound request, named "ServeHTTP",
// and hands the rest of the request's lifetime (location match, plugin
// pipeline, cache lookup, upstream forward) a context that
// SpanFromContext can attach child spans to.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, span := PrepareRequest(r, "ServeHTTP")
		defer span.End()
		next.ServeHTTP(w, r)
	})
}

// MuxMiddleware adapts Middleware to gorilla/mux's MiddlewareFunc shape.
var MuxMiddleware mux.MiddlewareFunc = Middleware
