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
	"sync/atomic"
	"testing"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithUpstream(backendURL, locationName string) *config.Snapshot {
	snap := config.New()
	snap.Upstreams["a"] = &config.UpstreamConfig{Name: "a", Addrs: []string{backendURL}}
	snap.Locations[locationName] = &config.LocationConfig{Name: locationName, Path: "/", Upstream: "a"}
	snap.Servers["main"] = &config.ServerConfig{Name: "main", Listen: ":0", Locations: []string{locationName}}
	return snap
}

func TestManagerServeProxiesToUpstream(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("from upstream"))
	}))
	defer backend.Close()

	snap := snapshotWithUpstream(backend.URL, "root")
	m, err := NewManager(snap)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	rec := httptest.NewRecorder()
	(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from upstream", rec.Body.String())
}

func TestManagerServeNoMatchingLocationReturns404(t *testing.T) {
	snap := snapshotWithUpstream("http://127.0.0.1:1", "onlyfoo")
	snap.Locations["onlyfoo"].Path = "=/foo"
	m, err := NewManager(snap)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://example.test/bar", nil)
	rec := httptest.NewRecorder()
	(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagerServeUnknownServerNameReturns500(t *testing.T) {
	snap := snapshotWithUpstream("http://127.0.0.1:1", "root")
	m, err := NewManager(snap)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	rec := httptest.NewRecorder()
	(&perServerHandler{mgr: m, name: "does-not-exist"}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestManagerReloadUpstreamsRetargetsTraffic(t *testing.T) {
	backendA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a"))
	}))
	defer backendA.Close()
	backendB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("b"))
	}))
	defer backendB.Close()

	m, err := NewManager(snapshotWithUpstream(backendA.URL, "root"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	rec := httptest.NewRecorder()
	(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)
	assert.Equal(t, "a", rec.Body.String())

	require.NoError(t, m.ReloadUpstreams(snapshotWithUpstream(backendB.URL, "root")))

	req2 := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	rec2 := httptest.NewRecorder()
	(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec2, req2)
	assert.Equal(t, "b", rec2.Body.String())
}

func TestManagerServeWithCachePluginAvoidsSecondUpstreamHit(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("cached body"))
	}))
	defer backend.Close()

	snap := snapshotWithUpstream(backend.URL, "root")
	snap.Locations["root"].Plugins = []string{"mycache"}
	snap.Plugins["mycache"] = config.RawPluginConfig{"category": "cache", "step": "request"}
	m, err := NewManager(snap)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
		rec := httptest.NewRecorder()
		(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)
		assert.Equal(t, "cached body", rec.Body.String())
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestManagerServeCacheHonorsUpstreamMaxAge(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte("cached body"))
	}))
	defer backend.Close()

	snap := snapshotWithUpstream(backend.URL, "root")
	snap.Locations["root"].Plugins = []string{"mycache"}
	snap.Plugins["mycache"] = config.RawPluginConfig{"category": "cache", "step": "request"}
	m, err := NewManager(snap)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
		rec := httptest.NewRecorder()
		(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)
		assert.Equal(t, "cached body", rec.Body.String())
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestManagerServeCacheHonorsUpstreamNoStore(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte("uncached body"))
	}))
	defer backend.Close()

	snap := snapshotWithUpstream(backend.URL, "root")
	snap.Locations["root"].Plugins = []string{"mycache"}
	snap.Plugins["mycache"] = config.RawPluginConfig{"category": "cache", "step": "request", "predictor": true}
	m, err := NewManager(snap)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
		rec := httptest.NewRecorder()
		(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)
		assert.Equal(t, "uncached body", rec.Body.String())
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestManagerServeNonGETNeverCached(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("posted"))
	}))
	defer backend.Close()

	snap := snapshotWithUpstream(backend.URL, "root")
	snap.Locations["root"].Plugins = []string{"mycache"}
	snap.Plugins["mycache"] = config.RawPluginConfig{"category": "cache", "step": "request"}
	m, err := NewManager(snap)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "http://example.test/", nil)
		rec := httptest.NewRecorder()
		(&perServerHandler{mgr: m, name: "main"}).ServeHTTP(rec, req)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
