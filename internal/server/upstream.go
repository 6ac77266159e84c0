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
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/log"
)

// upstreamPool round-robins fetches across one upstream's backend
// addresses, prefixing Scheme onto any address that doesn't already
// carry one.
type upstreamPool struct {
	mu    sync.Mutex
	addrs []string
	next  int
}

func newUpstreamPool(uc *config.UpstreamConfig) *upstreamPool {
	scheme := uc.Scheme
	if scheme == "" {
		scheme = "http"
	}
	addrs := make([]string, len(uc.Addrs))
	for i, a := range uc.Addrs {
		if strings.Contains(a, "://") {
			addrs[i] = a
		} else {
			addrs[i] = scheme + "://" + a
		}
	}
	return &upstreamPool{addrs: addrs}
}

// pick returns the next backend base URL in rotation, or "" if the
// pool has no addresses configured.
func (p *upstreamPool) pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.addrs) == 0 {
		return ""
	}
	a := p.addrs[p.next%len(p.addrs)]
	p.next++
	return a
}

// fetchUpstream forwards r to pool's next backend, copying the inbound
// header set onto the outbound request and adding X-Forwarded-For. A
// missing pool or a transport-level failure both surface as a 502
// rather than propagating the error to the caller, matching a reverse
// proxy's contract of always producing a response for the client.
func (m *Manager) fetchUpstream(pool *upstreamPool, r *http.Request) (status int, header http.Header, body []byte) {
	if pool == nil {
		return http.StatusBadGateway, http.Header{}, []byte("no upstream configured for this location")
	}
	target := pool.pick()
	if target == "" {
		return http.StatusBadGateway, http.Header{}, []byte("upstream has no addresses configured")
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target+r.URL.RequestURI(), r.Body)
	if err != nil {
		log.Error("upstream request construction failed", log.Pairs{"error": err.Error(), "target": target})
		return http.StatusBadGateway, http.Header{}, []byte("bad upstream request")
	}
	outReq.Header = r.Header.Clone()
	outReq.Header.Set("X-Forwarded-For", clientIP(r))
	outReq.Header.Set("X-Forwarded-Host", r.Host)

	resp, err := m.client.Do(outReq)
	if err != nil {
		log.Error("upstream request failed", log.Pairs{"error": err.Error(), "target": target})
		return http.StatusBadGateway, http.Header{}, []byte("upstream unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("upstream response read failed", log.Pairs{"error": err.Error(), "target": target})
		return http.StatusBadGateway, http.Header{}, []byte("upstream response read failed")
	}
	return resp.StatusCode, resp.Header, respBody
}

func clientIP(r *http.Request) string {
	if i := strings.LastIndex(r.RemoteAddr, ":"); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
