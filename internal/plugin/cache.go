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

package plugin

import (
	"net/http"
	"strings"
	"time"

	"github.com/Comcast/proxygate/internal/cache"
	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/perr"
	"github.com/Comcast/proxygate/internal/state"
)

const (
	CategoryCache = "cache"

	defaultLockDuration  = time.Second
	defaultMaxFileSize   = 50 * 1000 * 1000
	minMaxFileSize       = 5 * 1000 * 1000
)

// CacheCollaborators bundles the four collaborators a cacheable
// request arms the session with (spec §4.D), plus the quantized lock
// timeout the Lock table was built for — a waiter must give up after
// this long, not some duration independent of which table it's
// actually blocked on.
type CacheCollaborators struct {
	Storage     *cache.Storage
	Eviction    *cache.EvictionManager
	Predictor   *cache.Predictor
	Lock        *cache.Lock
	LockTimeout time.Duration
}

// SharedCache is the process-wide singleton set every Cache plugin
// instance draws its collaborators from — "lazily initialized
// singletons" per spec §9 Design Notes, built once at startup and
// threaded through plugin construction rather than reached for as
// package-level globals at call sites.
type SharedCache struct {
	storage   *cache.Storage
	eviction  *cache.EvictionManager
	predictor *cache.Predictor
	locks     *cache.Registry
}

// NewSharedCache builds the singleton set, bounding the eviction
// manager at maxSizeBytes (spec: basic.cache_max_size, or 100 MiB).
func NewSharedCache(maxSizeBytes int64) *SharedCache {
	eviction := cache.NewEvictionManager(maxSizeBytes)
	predictor := cache.NewPredictor()
	return &SharedCache{
		storage:   cache.NewStorage(eviction, predictor),
		eviction:  eviction,
		predictor: predictor,
		locks:     cache.NewRegistry(),
	}
}

// Cache is the request-step plugin that gates and arms upstream
// caching (spec §4.D).
type Cache struct {
	name     string
	step     string
	eviction bool // effectiveEviction(): true means enable the eviction manager
	predictor bool
	lock      time.Duration
	maxFileSize int64
	maxTTL      time.Duration
	hasMaxTTL   bool
	namespace   string
	headers     []string

	shared *SharedCache
}

// NewCache constructs a Cache plugin from its raw TOML config. shared
// is the process-wide collaborator set (normally one per process,
// injected by the registry at startup).
func NewCache(name string, raw config.RawPluginConfig, shared *SharedCache) (*Cache, error) {
	step, err := getStepConf(raw)
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}
	if step != StepRequest {
		return nil, &perr.PluginInvalid{Plugin: name, Message: "cache plugin must declare step = \"request\""}
	}

	lock, err := getDurationConf(raw, "lock", defaultLockDuration)
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}
	if lock < time.Second {
		lock = time.Second
	}

	maxTTL, err := getDurationConf(raw, "max_ttl", 0)
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}

	maxFileSize, err := getByteSizeConf(raw, "max_file_size", defaultMaxFileSize)
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}
	if maxFileSize < minMaxFileSize {
		maxFileSize = minMaxFileSize
	}

	return &Cache{
		name:        name,
		step:        step,
		eviction:    effectiveEviction(raw),
		predictor:   getBoolConf(raw, "predictor"),
		lock:        lock,
		maxFileSize: maxFileSize,
		maxTTL:      maxTTL,
		hasMaxTTL:   maxTTL > 0,
		namespace:   getStrConf(raw, "namespace"),
		headers:     getStrSliceConf(raw, "headers"),
		shared:      shared,
	}, nil
}

// effectiveEviction normalizes the source's double-negative
// eviction flag (spec §9 Open Questions): the reference treats
// "eviction" as present-iff-key-exists at parse time, then disables
// the eviction manager when that flag is true. Here a single
// `eviction` boolean means "enable eviction", defaulting to true when
// the key is absent.
func effectiveEviction(raw config.RawPluginConfig) bool {
	if !hasConf(raw, "eviction") {
		return true
	}
	return getBoolConf(raw, "eviction")
}

func (c *Cache) Name() string     { return c.name }
func (c *Cache) Category() string { return CategoryCache }
func (c *Cache) Step() string     { return c.step }

// Handle implements RequestPlugin. Non-GET/HEAD requests are a no-op
// (spec invariant 1: "session.cache disabled and ctx.cache_prefix =
// none").
func (c *Cache) Handle(session Session, st *state.State) (*HTTPResponse, error) {
	req := session.Request()
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return nil, nil
	}

	if c.hasMaxTTL {
		st.CacheMaxTTL = c.maxTTL
		st.HasCacheMaxTTL = true
	}

	var eviction *cache.EvictionManager
	if c.eviction {
		eviction = c.shared.eviction
	}
	var predictor *cache.Predictor
	if c.predictor {
		predictor = c.shared.predictor
	}
	lockTable := c.shared.locks.Table(c.lock)

	session.Cache().Enable(CacheCollaborators{
		Storage:     c.shared.storage,
		Eviction:    eviction,
		Predictor:   predictor,
		Lock:        lockTable,
		LockTimeout: cache.QuantizeLockDuration(c.lock),
	})
	if c.maxFileSize > 0 {
		session.Cache().SetMaxFileSizeBytes(c.maxFileSize)
	}

	var keyPrefix strings.Builder
	if c.namespace != "" {
		keyPrefix.WriteString(c.namespace)
		keyPrefix.WriteByte(':')
	}
	for _, h := range c.headers {
		v := req.Header.Get(h)
		if v != "" {
			keyPrefix.WriteString(v)
			keyPrefix.WriteByte(':')
		}
	}
	if keyPrefix.Len() > 0 {
		st.CachePrefix = keyPrefix.String()
	}

	return nil, nil
}

// BuildKey joins cachePrefix (possibly empty) with the method+URI key
// the I/O stack would otherwise use alone (spec §4.D Key construction).
func BuildKey(cachePrefix, method, effectiveURI string) string {
	if cachePrefix == "" {
		return method + ":" + effectiveURI
	}
	return cachePrefix + method + ":" + effectiveURI
}
