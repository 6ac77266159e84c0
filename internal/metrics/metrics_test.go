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

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestProxyRequestsTotalIncrementsPerLabelSet(t *testing.T) {
	ProxyRequestsTotal.Reset()
	ProxyRequestsTotal.WithLabelValues("root", "a", "200").Inc()
	ProxyRequestsTotal.WithLabelValues("root", "a", "200").Inc()
	ProxyRequestsTotal.WithLabelValues("root", "a", "502").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(ProxyRequestsTotal.WithLabelValues("root", "a", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ProxyRequestsTotal.WithLabelValues("root", "a", "502")))
}

func TestCacheLookupsTotalByOutcome(t *testing.T) {
	CacheLookupsTotal.Reset()
	CacheLookupsTotal.WithLabelValues("hit").Inc()
	CacheLookupsTotal.WithLabelValues("miss").Inc()
	CacheLookupsTotal.WithLabelValues("miss").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss")))
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	ReloadsTotal.Reset()
	ReloadsTotal.WithLabelValues("hot_reload").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "proxygate_reload_total")
}
