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

// Package state carries the per-request context ("State" in the spec)
// that plugins, the cache, and the access-log formatter read and write
// as a request moves through the proxy.
package state

import "time"

// Compression records byte counts and timing for a compressed payload.
type Compression struct {
	InBytes  int64
	OutBytes int64
	Duration time.Duration
}

// Ratio returns InBytes/OutBytes, or zero if OutBytes is zero.
func (c Compression) Ratio() float64 {
	if c.OutBytes == 0 {
		return 0
	}
	return float64(c.InBytes) / float64(c.OutBytes)
}

// State is the per-in-flight-request context. It is created when a
// session is accepted, mutated only by the task that owns it, and
// discarded when the session closes. Nothing here is safe to share
// across requests.
type State struct {
	CreatedAt time.Time

	Location       string
	UpstreamAddr   string
	Reused         bool
	Established    bool
	RequestID      string
	Processing     int

	UpstreamConnectTime time.Duration
	ProcessingTime      time.Duration
	ResponseTime        time.Duration
	CacheLookupTime     time.Duration
	CacheLockTime       time.Duration

	ResponseStatus   int
	PayloadSize      int64
	ResponseBodySize int64
	TLSVersion       string

	Compression Compression

	CacheMaxTTL    time.Duration
	HasCacheMaxTTL bool
	CachePrefix    string
}

// New returns a State stamped with the current time as CreatedAt.
func New() *State {
	return &State{CreatedAt: time.Now()}
}

// Latency returns the total time elapsed since the State was created.
func (s *State) Latency() time.Duration {
	return time.Since(s.CreatedAt)
}

// Field looks up a named State field the way the `:name` access-log and
// header-template token does. It returns the rendered string and
// whether the name was recognized at all; the resolver renders an
// unrecognized name as the empty string.
func (s *State) Field(name string) (string, bool) {
	switch name {
	case "reused":
		return formatBool(s.Reused), true
	case "established":
		return formatBool(s.Established), true
	case "location":
		return s.Location, true
	case "upstream_addr":
		return s.UpstreamAddr, true
	case "request_id":
		return s.RequestID, true
	case "processing":
		return formatInt(s.Processing), true
	case "upstream_connect_time":
		return formatMillis(s.UpstreamConnectTime), true
	case "processing_time":
		return formatMillis(s.ProcessingTime), true
	case "response_time":
		return formatMillis(s.ResponseTime), true
	case "cache_lookup_time":
		return formatMillis(s.CacheLookupTime), true
	case "cache_lock_time":
		return formatMillis(s.CacheLockTime), true
	case "tls_version":
		return s.TLSVersion, true
	case "compression_ratio":
		return formatRatio(s.Compression.Ratio()), true
	case "compression_in_bytes":
		return formatInt64(s.Compression.InBytes), true
	case "compression_out_bytes":
		return formatInt64(s.Compression.OutBytes), true
	case "compression_duration":
		return formatMillis(s.Compression.Duration), true
	case "cache_prefix":
		return s.CachePrefix, true
	case "response_status":
		return formatInt(s.ResponseStatus), true
	case "payload_size":
		return formatInt64(s.PayloadSize), true
	case "response_body_size":
		return formatInt64(s.ResponseBodySize), true
	}
	return "", false
}
