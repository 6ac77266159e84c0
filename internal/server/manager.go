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

// Package server is the outer HTTP listener (spec §4.B/§4.C): it binds
// one net/http server per configured server block, matches each
// request against that server's location table, runs the location's
// plugin pipeline, resolves the response from cache or upstream, and
// renders the access-log line — then rebuilds all of the above from a
// fresh snapshot on every hot reload (implementing reload.Dispatcher).
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Comcast/proxygate/internal/accesslog"
	"github.com/Comcast/proxygate/internal/cache"
	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/location"
	"github.com/Comcast/proxygate/internal/log"
	"github.com/Comcast/proxygate/internal/metrics"
	"github.com/Comcast/proxygate/internal/perr"
	"github.com/Comcast/proxygate/internal/plugin"
	"github.com/Comcast/proxygate/internal/resolver"
	"github.com/Comcast/proxygate/internal/state"
	"github.com/Comcast/proxygate/internal/tracing"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// defaultCacheLockWaitCeiling bounds how long a request waits on a
// concurrent fill before proceeding as an independent miss, when the
// arming Cache plugin supplied no LockTimeout of its own. It matches
// the widest bucket Registry materializes.
const defaultCacheLockWaitCeiling = 3 * time.Second

// defaultCacheTTL is used for responses whose lifetime is given
// neither by the upstream's own freshness headers nor by a configured
// max_ttl; the reference treats an absent TTL as "cache indefinitely" for
// bookkeeping purposes, which in a fixed-bucket freshness check is the
// same as a very long TTL.
const defaultCacheTTL = 24 * time.Hour

// defaultCacheEntryMaxSize backstops a Cache plugin that never called
// SetMaxFileSizeBytes.
const defaultCacheEntryMaxSize = 50 * 1000 * 1000

// runningServer is one configured server block's derived, ready-to-run
// state: its location table and access-log formatter, plus the live
// *http.Server once Start has bound it.
type runningServer struct {
	cfg        *config.ServerConfig
	table      *location.Table
	access     *accesslog.Formatter
	httpServer *http.Server
}

// Manager owns every derived structure built from the running
// *config.Snapshot and implements reload.Dispatcher so the reload
// controller can hand it a freshly validated snapshot whenever the
// hot-reloadable sections change.
type Manager struct {
	mu        sync.RWMutex
	snapshot  *config.Snapshot
	locations map[string]*location.Location
	upstreams map[string]*upstreamPool
	registry  *plugin.Registry
	servers   map[string]*runningServer

	shared *plugin.SharedCache
	client *http.Client
}

// NewManager builds a Manager from the starting snapshot. The shared
// cache singletons are created once, here, and survive every
// subsequent reload — only the plugin instances drawing from them are
// rebuilt (spec §9: "lazily initialized singletons ... threaded
// through constructors").
func NewManager(initial *config.Snapshot) (*Manager, error) {
	m := &Manager{
		shared: plugin.NewSharedCache(initial.Basic.CacheMaxSize),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	if err := m.rebuild(initial); err != nil {
		return nil, err
	}
	return m, nil
}

// rebuild derives locations, upstream pools, the plugin registry, and
// per-server location tables from desired, then publishes them
// together under one lock. It is the single code path behind every
// Dispatcher method below: each hot-reloadable section is, in the end,
// rebuilt from the complete desired snapshot rather than patched in
// place, since desired is always the full intended state rather than a
// partial diff.
func (m *Manager) rebuild(desired *config.Snapshot) error {
	locs := make(map[string]*location.Location, len(desired.Locations))
	for name, lc := range desired.Locations {
		loc, err := location.New(name, lc)
		if err != nil {
			return &perr.ConfigInvalid{Section: config.SectionLocations, Err: err}
		}
		locs[name] = loc
	}

	upstreams := make(map[string]*upstreamPool, len(desired.Upstreams))
	for name, uc := range desired.Upstreams {
		upstreams[name] = newUpstreamPool(uc)
	}

	registry, errs := plugin.NewRegistry(desired, m.shared)
	for _, err := range errs {
		log.Error("plugin rejected at load", log.Pairs{"error": err.Error()})
	}

	servers := make(map[string]*runningServer, len(desired.Servers))
	m.mu.RLock()
	existing := m.servers
	m.mu.RUnlock()
	for name, sc := range desired.Servers {
		rs := &runningServer{cfg: sc, table: location.NewTable(sc.Locations, locs)}
		if sc.AccessLogTemplate != "" {
			rs.access = accesslog.New(sc.AccessLogTemplate, sc.AccessLogFile)
		}
		if prev, ok := existing[name]; ok {
			rs.httpServer = prev.httpServer
		}
		servers[name] = rs
	}

	m.mu.Lock()
	m.snapshot = desired
	m.locations = locs
	m.upstreams = upstreams
	m.registry = registry
	m.servers = servers
	m.mu.Unlock()
	return nil
}

// ReloadUpstreams implements reload.Dispatcher.
func (m *Manager) ReloadUpstreams(desired *config.Snapshot) error { return m.rebuild(desired) }

// ReloadLocations implements reload.Dispatcher.
func (m *Manager) ReloadLocations(desired *config.Snapshot) error { return m.rebuild(desired) }

// ReloadServerLocations implements reload.Dispatcher.
func (m *Manager) ReloadServerLocations(desired *config.Snapshot) error { return m.rebuild(desired) }

// Start binds and serves every configured server block in its own
// goroutine. It returns once every listener has been launched; it
// does not block for their lifetime.
func (m *Manager) Start() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, rs := range m.servers {
		router := mux.NewRouter()
		router.PathPrefix("/").Handler(&perServerHandler{mgr: m, name: name})
		hs := &http.Server{Addr: rs.cfg.Listen, Handler: router}
		rs.httpServer = hs
		go func(name string, hs *http.Server) {
			log.Info("server listening", log.Pairs{"server": name, "addr": hs.Addr})
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("server exited", log.Pairs{"server": name, "error": err.Error()})
			}
		}(name, hs)
	}
}

// Stop gracefully shuts down every bound listener.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, rs := range m.servers {
		if rs.httpServer == nil {
			continue
		}
		if err := rs.httpServer.Shutdown(ctx); err != nil {
			log.Warn("server shutdown error", log.Pairs{"server": name, "error": err.Error()})
		}
		if rs.access != nil {
			_ = rs.access.Close()
		}
	}
}

// perServerHandler dispatches every request arriving on one bound
// listener to the Manager, re-resolving that server's current
// runningServer fresh on each request so a hot reload takes effect for
// the very next inbound request.
type perServerHandler struct {
	mgr  *Manager
	name string
}

func (h *perServerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mgr.serve(h.name, w, r)
}

func (m *Manager) serve(serverName string, w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	m.mu.RLock()
	rs, ok := m.servers[serverName]
	registry := m.registry
	upstreams := m.upstreams
	m.mu.RUnlock()
	if !ok {
		http.Error(w, "server not configured", http.StatusInternalServerError)
		return
	}

	r, rootSpan := tracing.PrepareRequest(r, "ServeHTTP")
	defer rootSpan.End()

	st := state.New()
	st.RequestID = requestID(r)

	matchCtx, matchSpan := tracing.SpanFromContext(r.Context(), "MatchLocation")
	r = r.WithContext(matchCtx)
	loc := rs.table.Match(r.Host, r.URL.Path)
	matchSpan.End()

	if loc == nil {
		metrics.ProxyRequestsTotal.WithLabelValues("", "", "404").Inc()
		http.NotFound(w, r)
		return
	}
	st.Location = loc.Name
	st.UpstreamAddr = loc.Upstream

	if rewritten, changed := loc.Rewrite(r.URL.Path); changed {
		r.URL.Path = rewritten
	}

	session := newSession(r)
	pipeline := registry.Build(loc.Plugins)

	reqCtx, reqSpan := tracing.SpanFromContext(r.Context(), "RunPipeline")
	r = r.WithContext(reqCtx)
	shortCircuit, err := pipeline.RunRequest(session, st)
	reqSpan.End()
	if err != nil {
		log.Error("request pipeline error", log.Pairs{"error": err.Error(), "location": loc.Name})
	}

	var status int
	var header http.Header
	var body []byte
	if shortCircuit != nil {
		status, header, body = shortCircuit.Status, shortCircuit.Header, shortCircuit.Body
	} else {
		fetchCtx, fetchSpan := tracing.SpanFromContext(r.Context(), "ProxyUpstream")
		r = r.WithContext(fetchCtx)
		status, header, body = m.resolveResponse(session, st, upstreams[loc.Upstream], r)
		fetchSpan.End()
	}

	respHeader := newResponseHeader(status, header)
	respBody, err := pipeline.RunResponse(session, st, respHeader)
	if err != nil {
		log.Error("response pipeline error", log.Pairs{"error": err.Error(), "location": loc.Name})
	}
	if respBody != nil {
		body = respBody
	}

	st.ResponseStatus = respHeader.Status()
	st.ResponseBodySize = int64(len(body))
	st.ProcessingTime = time.Since(start)
	st.ResponseTime = st.Latency()

	for name, values := range respHeader.header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(respHeader.Status())
	_, _ = w.Write(body)

	metrics.ProxyRequestsTotal.WithLabelValues(loc.Name, loc.Upstream, strconv.Itoa(respHeader.Status())).Inc()
	metrics.ProxyRequestDuration.WithLabelValues(loc.Name).Observe(st.Latency().Seconds())

	if rs.access != nil {
		rs.access.Render(&resolver.Context{
			Request:   r,
			Response:  &http.Response{StatusCode: respHeader.Status(), Header: respHeader.header},
			State:     st,
			RequestID: st.RequestID,
		})
	}
}

// resolveResponse serves a cacheable GET/HEAD from Storage when fresh,
// otherwise single-flights the upstream fill through the session's
// armed Lock (spec §4.D): the first arrival fetches and inserts, every
// concurrent arrival for the same key waits on that fill and reuses
// its result instead of issuing a redundant upstream request. A
// request the Cache plugin never armed (non-GET/HEAD, or no cache
// plugin bound to the location) always goes straight upstream. A key
// the Predictor has already proven non-cacheable skips the lock/wait
// entirely — there's nothing worth waiting on another filler for
// (spec §4.D: "the first miss on a non-cacheable key [is] handled
// without locking").
func (m *Manager) resolveResponse(session *Session, st *state.State, pool *upstreamPool, r *http.Request) (int, http.Header, []byte) {
	cc := session.cache
	if !cc.enabled {
		return m.fetchUpstream(pool, r)
	}

	key := plugin.BuildKey(st.CachePrefix, r.Method, r.URL.RequestURI())

	lookupStart := time.Now()
	if entry, ok := cc.collaborators.Storage.Get(key, time.Now()); ok {
		st.CacheLookupTime = time.Since(lookupStart)
		body := entry.Body()
		st.Compression = state.Compression{InBytes: entry.OriginalLen, OutBytes: int64(len(entry.Payload))}
		return entry.Status, http.Header(entry.Header).Clone(), body
	}
	st.CacheLookupTime = time.Since(lookupStart)

	predictedCacheable := cc.collaborators.Predictor == nil || cc.collaborators.Predictor.Likely(key)

	if predictedCacheable && cc.collaborators.Lock != nil {
		if acquired, waiter := cc.collaborators.Lock.Acquire(key); acquired {
			defer cc.collaborators.Lock.Release(key)
		} else {
			lockStart := time.Now()
			timeout := cc.collaborators.LockTimeout
			if timeout <= 0 {
				timeout = defaultCacheLockWaitCeiling
			}
			waiter.Wait(timeout)
			st.CacheLockTime = time.Since(lockStart)
			if entry, ok := cc.collaborators.Storage.Get(key, time.Now()); ok {
				return entry.Status, http.Header(entry.Header).Clone(), entry.Body()
			}
		}
	}

	status, header, body := m.fetchUpstream(pool, r)
	m.maybeCacheResponse(cc, key, status, header, body, st)
	return status, header, body
}

// maybeCacheResponse inserts an upstream response into Storage when
// both the status and the response's own freshness signal allow it,
// recording the outcome with the Predictor so later arrivals for the
// same key can skip locking on a response proven non-cacheable (spec
// §4.D Freshness: "ttl = min(max_ttl, upstream_freshness)").
func (m *Manager) maybeCacheResponse(cc *sessionCache, key string, status int, header http.Header, body []byte, st *state.State) {
	if cc.collaborators.Storage == nil {
		return
	}

	upstreamTTL, hasUpstreamTTL, cacheable := cache.Freshness(header, time.Now())
	if status <= 0 || status >= 500 || !cacheable {
		if cc.collaborators.Predictor != nil {
			cc.collaborators.Predictor.Record(key, false)
		}
		return
	}

	ttl := defaultCacheTTL
	if hasUpstreamTTL && upstreamTTL < ttl {
		ttl = upstreamTTL
	}
	if st.HasCacheMaxTTL && st.CacheMaxTTL < ttl {
		ttl = st.CacheMaxTTL
	}

	maxFileSize := cc.maxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultCacheEntryMaxSize
	}
	entry := cache.NewEntry(status, map[string][]string(header), body, time.Now(), ttl)
	if err := cc.collaborators.Storage.Insert(key, entry, maxFileSize); err != nil {
		log.Warn("cache insert failed", log.Pairs{"error": err.Error(), "key": key})
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}
