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

package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseCacheControl splits a Cache-Control header into its directive
// map, keyed by directive name with any "=value" captured as the map
// value.
func parseCacheControl(header http.Header) map[string]string {
	cc := map[string]string{}
	for _, part := range strings.Split(header.Get("Cache-Control"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			cc[strings.TrimSpace(part[:eq])] = strings.Trim(part[eq+1:], `" `)
			continue
		}
		cc[part] = ""
	}
	return cc
}

// Freshness derives an upstream response's own cacheability and
// lifetime from its Cache-Control/Expires headers (spec §4.D
// Freshness: "ttl = min(max_ttl, upstream_freshness)"). cacheable is
// false when the response explicitly forbids caching (no-store,
// no-cache, or a non-positive max-age/Expires); ttl/hasTTL are then
// meaningless. When cacheable is true, hasTTL reports whether max-age
// or Expires gave an explicit lifetime (ttl holds it) — hasTTL false
// means the upstream gave no freshness signal at all and the caller's
// own default applies.
func Freshness(header http.Header, now time.Time) (ttl time.Duration, hasTTL bool, cacheable bool) {
	cc := parseCacheControl(header)
	if _, ok := cc["no-store"]; ok {
		return 0, false, false
	}
	if _, ok := cc["no-cache"]; ok {
		return 0, false, false
	}
	if v, ok := cc["max-age"]; ok {
		secs, err := strconv.Atoi(v)
		if err == nil {
			if secs <= 0 {
				return 0, false, false
			}
			return time.Duration(secs) * time.Second, true, true
		}
	}
	if expires := header.Get("Expires"); expires != "" {
		t, err := http.ParseTime(expires)
		if err == nil {
			if d := t.Sub(now); d > 0 {
				return d, true, true
			}
			return 0, false, false
		}
	}
	return 0, false, true
}
