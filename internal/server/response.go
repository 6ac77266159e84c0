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

import "net/http"

// responseHeader is the plugin.ResponseHeader implementation backed by
// a plain http.Header: Append adds a value, Insert overwrites, Remove
// deletes — the same semantics http.Header's own Add/Set/Del give us.
type responseHeader struct {
	status int
	header http.Header
}

func newResponseHeader(status int, upstream http.Header) *responseHeader {
	h := upstream.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &responseHeader{status: status, header: h}
}

func (r *responseHeader) Status() int { return r.status }

func (r *responseHeader) AppendHeader(name, value string) { r.header.Add(name, value) }

func (r *responseHeader) InsertHeader(name, value string) { r.header.Set(name, value) }

func (r *responseHeader) RemoveHeader(name string) { r.header.Del(name) }
