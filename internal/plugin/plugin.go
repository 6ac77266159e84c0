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

// Package plugin implements the request/response lifecycle pipeline
// (spec §4.C) and the built-in plugins that run inside it: Cache
// (§4.D) and ResponseHeaders.
package plugin

import (
	"net/http"

	"github.com/Comcast/proxygate/internal/state"
)

// Lifecycle steps a plugin may be bound to.
const (
	StepRequest  = "request"
	StepResponse = "response"
)

// HTTPResponse is a synthesized response a RequestPlugin returns to
// short-circuit the pipeline (spec: "may return ... a HttpResponse:
// short-circuit").
type HTTPResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// ResponseHeader is the collaborator contract for the outbound
// response header, mutable by response-step plugins (spec §6). The
// request side uses *http.Request directly (see Session.Request) —
// there is no separate RequestHeader abstraction to keep in sync with
// the stdlib type it would otherwise just mirror.
type ResponseHeader interface {
	Status() int
	AppendHeader(name, value string)
	InsertHeader(name, value string)
	RemoveHeader(name string)
}

// CacheControl is the Session.cache collaborator plugins use to arm
// the session with its caching collaborators (spec §6:
// "cache.enable(storage, eviction?, predictor?, lock?)").
type CacheControl interface {
	Enable(c CacheCollaborators)
	SetMaxFileSizeBytes(n int64)
}

// Session is the minimal collaborator contract the pipeline needs from
// the I/O stack (spec §6). SetURI rewrites the request's effective
// path, the same change the location rewriter makes directly on the
// request, for plugins that need to rewrite the outgoing request line.
type Session interface {
	Request() *http.Request
	SetURI(uri string)
	Cache() CacheControl
}

// RequestPlugin runs at the request step. It may synthesize a
// response to short-circuit the remaining pipeline and the upstream
// call.
type RequestPlugin interface {
	Name() string
	Category() string
	Step() string
	Handle(session Session, st *state.State) (*HTTPResponse, error)
}

// ResponsePlugin runs at the response step. It may rewrite response
// headers (and optionally override the body) but never short-circuits.
type ResponsePlugin interface {
	Name() string
	Category() string
	Step() string
	Handle(session Session, st *state.State, resp ResponseHeader) ([]byte, error)
}
