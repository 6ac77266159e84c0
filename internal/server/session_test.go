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
	"net/http/httptest"
	"testing"

	"github.com/Comcast/proxygate/internal/plugin"
	"github.com/stretchr/testify/assert"
)

func TestSessionSetURIRewritesRequestPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://x/old/path", nil)
	s := newSession(req)

	s.SetURI("/new/path")

	assert.Equal(t, "/new/path", s.Request().URL.Path)
}

func TestSessionCacheStartsDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	s := newSession(req)

	cc, ok := s.Cache().(*sessionCache)
	assert.True(t, ok)
	assert.False(t, cc.enabled)
}

func TestSessionCacheEnableArmsCollaborators(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	s := newSession(req)

	s.Cache().Enable(plugin.CacheCollaborators{})
	s.Cache().SetMaxFileSizeBytes(1024)

	cc := s.cache
	assert.True(t, cc.enabled)
	assert.Equal(t, int64(1024), cc.maxFileSize)
}
