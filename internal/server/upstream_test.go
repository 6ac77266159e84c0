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

	"github.com/Comcast/proxygate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUpstreamPoolDefaultsSchemeToHTTP(t *testing.T) {
	pool := newUpstreamPool(&config.UpstreamConfig{Addrs: []string{"127.0.0.1:9001"}})
	assert.Equal(t, "http://127.0.0.1:9001", pool.pick())
}

func TestNewUpstreamPoolHonorsExplicitScheme(t *testing.T) {
	pool := newUpstreamPool(&config.UpstreamConfig{Addrs: []string{"backend:9001"}, Scheme: "https"})
	assert.Equal(t, "https://backend:9001", pool.pick())
}

func TestNewUpstreamPoolLeavesAddrsWithSchemeAlone(t *testing.T) {
	pool := newUpstreamPool(&config.UpstreamConfig{Addrs: []string{"https://already:443"}, Scheme: "http"})
	assert.Equal(t, "https://already:443", pool.pick())
}

func TestUpstreamPoolPickRoundRobins(t *testing.T) {
	pool := newUpstreamPool(&config.UpstreamConfig{Addrs: []string{"a:1", "b:2"}})
	assert.Equal(t, "http://a:1", pool.pick())
	assert.Equal(t, "http://b:2", pool.pick())
	assert.Equal(t, "http://a:1", pool.pick())
}

func TestUpstreamPoolPickEmptyReturnsEmptyString(t *testing.T) {
	pool := newUpstreamPool(&config.UpstreamConfig{})
	assert.Equal(t, "", pool.pick())
}

func TestFetchUpstreamForwardsAndReturnsBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	}))
	defer backend.Close()

	pool := &upstreamPool{addrs: []string{backend.URL}}
	m := &Manager{client: http.DefaultClient}

	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	status, header, body := m.fetchUpstream(pool, req)

	require.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "yes", header.Get("X-Upstream"))
	assert.Equal(t, "hello", string(body))
}

func TestFetchUpstreamNilPoolReturnsBadGateway(t *testing.T) {
	m := &Manager{client: http.DefaultClient}
	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)

	status, _, _ := m.fetchUpstream(nil, req)

	assert.Equal(t, http.StatusBadGateway, status)
}

func TestFetchUpstreamUnreachableReturnsBadGateway(t *testing.T) {
	m := &Manager{client: &http.Client{}}
	pool := &upstreamPool{addrs: []string{"http://127.0.0.1:1"}}
	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)

	status, _, _ := m.fetchUpstream(pool, req)

	assert.Equal(t, http.StatusBadGateway, status)
}
