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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFreshnessNoHeadersFallsBackToDefault(t *testing.T) {
	ttl, hasTTL, cacheable := Freshness(http.Header{}, time.Now())
	assert.True(t, cacheable)
	assert.False(t, hasTTL)
	assert.Zero(t, ttl)
}

func TestFreshnessMaxAgeWins(t *testing.T) {
	h := http.Header{"Cache-Control": {"max-age=60"}}
	ttl, hasTTL, cacheable := Freshness(h, time.Now())
	assert.True(t, cacheable)
	assert.True(t, hasTTL)
	assert.Equal(t, 60*time.Second, ttl)
}

func TestFreshnessZeroMaxAgeIsUncacheable(t *testing.T) {
	h := http.Header{"Cache-Control": {"max-age=0"}}
	_, _, cacheable := Freshness(h, time.Now())
	assert.False(t, cacheable)
}

func TestFreshnessNoStoreIsUncacheable(t *testing.T) {
	h := http.Header{"Cache-Control": {"no-store"}}
	_, _, cacheable := Freshness(h, time.Now())
	assert.False(t, cacheable)
}

func TestFreshnessNoCacheIsUncacheable(t *testing.T) {
	h := http.Header{"Cache-Control": {"no-cache"}}
	_, _, cacheable := Freshness(h, time.Now())
	assert.False(t, cacheable)
}

func TestFreshnessExpiresInFuture(t *testing.T) {
	now := time.Now()
	h := http.Header{"Expires": {now.Add(time.Hour).UTC().Format(http.TimeFormat)}}
	ttl, hasTTL, cacheable := Freshness(h, now)
	assert.True(t, cacheable)
	assert.True(t, hasTTL)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 2)
}

func TestFreshnessExpiresInPastIsUncacheable(t *testing.T) {
	now := time.Now()
	h := http.Header{"Expires": {now.Add(-time.Hour).UTC().Format(http.TimeFormat)}}
	_, _, cacheable := Freshness(h, now)
	assert.False(t, cacheable)
}

func TestFreshnessMaxAgeTakesPrecedenceOverExpires(t *testing.T) {
	now := time.Now()
	h := http.Header{
		"Cache-Control": {"max-age=30"},
		"Expires":       {now.Add(-time.Hour).UTC().Format(http.TimeFormat)},
	}
	ttl, hasTTL, cacheable := Freshness(h, now)
	assert.True(t, cacheable)
	assert.True(t, hasTTL)
	assert.Equal(t, 30*time.Second, ttl)
}
