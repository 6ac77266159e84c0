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

package config

const (
	defaultLogLevel = "info"

	defaultListenAddress = ""
	defaultListenPort    = 9090

	defaultMetricsListenAddress = ""
	defaultMetricsListenPort    = 8082

	// defaultCacheMaxSizeBytes is the Eviction Manager's ceiling when
	// basic.cache_max_size is unset (100 MiB).
	defaultCacheMaxSizeBytes = 100 * 1024 * 1024

	// defaultReloadIntervalSecs is the reload controller's period P
	// when basic.reload_interval_secs is unset or non-positive.
	defaultReloadIntervalSecs = 30
)

// applyDefaults fills zero-valued BasicConfig fields with their
// defaults. Mirrors the teacher's NewOriginConfig/setDefaults idiom:
// defaults are applied in a second pass after decode. A field left at
// its zero value, whether omitted or written explicitly as zero,
// receives the default.
func (s *Snapshot) applyDefaults() {
	if s.Basic.LogLevel == "" {
		s.Basic.LogLevel = defaultLogLevel
	}
	if s.Basic.ListenPort == 0 {
		s.Basic.ListenPort = defaultListenPort
	}
	if s.Basic.MetricsListenPort == 0 {
		s.Basic.MetricsListenPort = defaultMetricsListenPort
	}
	if s.Basic.CacheMaxSize == 0 {
		s.Basic.CacheMaxSize = defaultCacheMaxSizeBytes
	}
	if s.Basic.ReloadIntervalSecs <= 0 {
		s.Basic.ReloadIntervalSecs = defaultReloadIntervalSecs
	}
	for _, u := range s.Upstreams {
		if u.Scheme == "" {
			u.Scheme = "http"
		}
	}
}
