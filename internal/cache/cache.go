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

// Package cache implements the process-wide collaborators the Cache
// Plugin arms a session with (spec §4.D): Storage, an Eviction
// Manager, a Predictor, and a Lock registry for single-flight fills.
package cache

import (
	"sync"
	"time"

	"github.com/Comcast/proxygate/internal/metrics"
	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a cached response: metadata plus a snappy-compressed
// payload, following the teacher's cache engine pattern of
// transparently compressing/decompressing at the storage boundary
// (internal/proxy/engines/cache.go's QueryCache/WriteCache).
type Entry struct {
	Status      int
	Header      map[string][]string
	Payload     []byte // snappy-compressed
	OriginalLen int64
	StoredAt    time.Time
	TTL         time.Duration
}

// NewEntry compresses body with snappy and wraps it with the response
// metadata needed to replay it later.
func NewEntry(status int, header map[string][]string, body []byte, storedAt time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Status:      status,
		Header:      header,
		Payload:     snappy.Encode(nil, body),
		OriginalLen: int64(len(body)),
		StoredAt:    storedAt,
		TTL:         ttl,
	}
}

// Body decompresses the entry's payload back to the original response
// bytes. Safe to call repeatedly; it never mutates the entry.
func (e *Entry) Body() []byte {
	b, err := snappy.Decode(nil, e.Payload)
	if err != nil {
		return nil
	}
	return b
}

// Fresh reports whether the entry is still servable at now.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) <= e.TTL
}

// Size is the entry's accounted byte cost against the eviction budget:
// the compressed resident size, matching what actually occupies the
// budget.
func (e *Entry) Size() int64 {
	return int64(len(e.Payload))
}

// Storage is the process-wide in-memory key→entry map. Entries beyond
// MaxFileSize are rejected at Insert; expired entries are treated as
// missing by Get without being proactively swept.
type Storage struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	eviction  *EvictionManager
	predictor *Predictor
}

// NewStorage constructs an empty Storage, optionally wired to an
// eviction manager and predictor (both nil-able; a Cache Plugin with
// eviction/predictor disabled arms Storage without them).
func NewStorage(eviction *EvictionManager, predictor *Predictor) *Storage {
	return &Storage{
		entries:   make(map[string]*Entry),
		eviction:  eviction,
		predictor: predictor,
	}
}

// Get returns the entry for key if present and fresh.
func (s *Storage) Get(key string, now time.Time) (*Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !e.Fresh(now) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if s.eviction != nil {
		s.eviction.Touch(key)
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return e, true
}

// Insert stores e under key, enforcing maxFileSize and triggering
// eviction when the manager is present and over budget.
func (s *Storage) Insert(key string, e *Entry, maxFileSize int64) error {
	if e.Size() > maxFileSize {
		return ErrEntryTooLarge
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	if s.predictor != nil {
		s.predictor.Record(key, true)
	}
	if s.eviction != nil {
		s.eviction.Admit(key, e.Size(), s)
	}
	return nil
}

// Remove deletes key unconditionally, used by the eviction manager to
// evict victims and by callers invalidating a stale entry.
func (s *Storage) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len reports the number of resident entries, for tests and metrics.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const defaultShardCount = 32

// EvictionManager bounds Storage's total resident bytes using an
// approximate LRU policy sharded across a fixed number of independent
// LRU tables (spec: "fixed shard count, 32 in the reference").
type EvictionManager struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	shards   []*lru.Cache[string, int64]
}

// NewEvictionManager builds a manager bounded by capacity bytes,
// sharded across defaultShardCount independent LRU tables. Each
// shard's own LRU is sized at 1<<20 items, large enough that shard
// eviction is driven by aggregate byte accounting in Admit rather than
// per-shard item count.
func NewEvictionManager(capacity int64) *EvictionManager {
	if capacity <= 0 {
		capacity = 100 * 1024 * 1024
	}
	shards := make([]*lru.Cache[string, int64], defaultShardCount)
	for i := range shards {
		c, _ := lru.New[string, int64](1 << 20)
		shards[i] = c
	}
	return &EvictionManager{capacity: capacity, shards: shards}
}

func (m *EvictionManager) shardFor(key string) *lru.Cache[string, int64] {
	return m.shards[fnv32(key)%uint32(len(m.shards))]
}

// Touch marks key as recently used, for the approximate-LRU recency
// ordering.
func (m *EvictionManager) Touch(key string) {
	shard := m.shardFor(key)
	if size, ok := shard.Get(key); ok {
		shard.Add(key, size)
	}
}

// Admit records key's size and evicts victims from storage until the
// aggregate budget holds or the map is empty.
func (m *EvictionManager) Admit(key string, size int64, storage *Storage) {
	m.mu.Lock()
	shard := m.shardFor(key)
	if old, ok := shard.Get(key); ok {
		m.used -= old
	}
	shard.Add(key, size)
	m.used += size

	for m.used > m.capacity && storage.Len() > 0 {
		victimShard := m.pickShardWithEntries()
		if victimShard == nil {
			break
		}
		vk, vsize, ok := victimShard.RemoveOldest()
		if !ok {
			break
		}
		m.used -= vsize
		storage.Remove(vk)
		metrics.CacheEvictionsTotal.Inc()
	}
	m.mu.Unlock()
}

func (m *EvictionManager) pickShardWithEntries() *lru.Cache[string, int64] {
	for _, s := range m.shards {
		if s.Len() > 0 {
			return s
		}
	}
	return nil
}

// Used returns the manager's current accounted byte total, for tests
// and metrics.
func (m *EvictionManager) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
