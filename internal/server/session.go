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

package server

import (
	"net/http"

	"github.com/Comcast/proxygate/internal/plugin"
)

// sessionCache is the plugin.CacheControl a request's Session exposes.
// A cache plugin that never runs for a location leaves it unarmed, so
// resolveResponse treats the request as uncacheable.
type sessionCache struct {
	enabled       bool
	collaborators plugin.CacheCollaborators
	maxFileSize   int64
}

func (c *sessionCache) Enable(col plugin.CacheCollaborators) {
	c.enabled = true
	c.collaborators = col
}

func (c *sessionCache) SetMaxFileSizeBytes(n int64) { c.maxFileSize = n }

// Session is the per-request plugin.Session implementation: a mutable
// view over the inbound *http.Request plus whatever cache collaborators
// the request-step pipeline arms it with.
type Session struct {
	req   *http.Request
	cache *sessionCache
}

func newSession(r *http.Request) *Session {
	return &Session{req: r, cache: &sessionCache{}}
}

// Request returns the (possibly rewritten) inbound request.
func (s *Session) Request() *http.Request { return s.req }

// SetURI overwrites the request's effective path, the way the location
// rewriter and rewrite-aware plugins change what gets forwarded
// upstream without mutating the original client request line.
func (s *Session) SetURI(uri string) { s.req.URL.Path = uri }

// Cache returns the session's cache control collaborator.
func (s *Session) Cache() plugin.CacheControl { return s.cache }
