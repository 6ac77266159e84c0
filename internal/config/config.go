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

// Package config is the Running Configuration for the proxy: the
// declarative Snapshot an operator edits on disk, and the machinery to
// load, validate, and diff it.
package config

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// structValidator runs the struct-tag constraints below. It's
// stateless and concurrency-safe per the package docs, so one instance
// is shared across every Load/Validate call.
var structValidator = validator.New()

// Section names recognized at the top level of a Snapshot. Any other
// top-level key that changes between two snapshots cannot be
// hot-reloaded and forces the reload controller to schedule a restart.
const (
	SectionBasic     = "basic"
	SectionUpstreams = "upstreams"
	SectionLocations = "locations"
	SectionServers   = "servers"
	SectionPlugins   = "plugins"
)

// RawPluginConfig is a plugin's configuration as decoded straight off
// the TOML table: a bag of scalar/list values keyed by name, read back
// out with the getXConf helpers in internal/plugin. This mirrors the
// PluginConf shape (an untyped map) the plugin constructors in the
// original source work from.
type RawPluginConfig map[string]interface{}

// BasicConfig holds the global knobs that don't belong to any
// individual upstream, location, server, or plugin.
type BasicConfig struct {
	// CacheMaxSize bounds the cache's total resident bytes; zero means
	// the Eviction Manager default (100 MiB) applies.
	CacheMaxSize int64 `toml:"cache_max_size"`
	// ListenAddress/ListenPort are decoded and overridable by env and
	// flag; internal/server does not read them, since each server block
	// binds its own Listen address.
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	// LogLevel and LogFile configure internal/log.
	LogLevel string `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFile  string `toml:"log_file"`
	// MetricsListenAddress/MetricsListenPort expose the Prometheus
	// registry.
	MetricsListenAddress string `toml:"metrics_listen_address"`
	MetricsListenPort    int    `toml:"metrics_listen_port"`
	// WebhookURL receives notifications on restart-triggering reloads
	// and validation failures.
	WebhookURL string `toml:"webhook_url"`
	// ReloadIntervalSecs is the reload controller's configured period P.
	ReloadIntervalSecs int `toml:"reload_interval_secs"`
}

// UpstreamConfig names one or more backend addresses a Location can
// forward surviving requests to.
type UpstreamConfig struct {
	Name  string   `toml:"-"`
	Addrs []string `toml:"addrs" validate:"required,min=1,dive,required"`
	// Scheme is prepended to Addrs lacking one of their own ("http").
	Scheme string `toml:"scheme" validate:"omitempty,oneof=http https"`
}

// LocationConfig is the on-disk form of a Location: host/path match
// plus optional rewrite and the plugins bound per lifecycle step.
type LocationConfig struct {
	Name string `toml:"-"`
	// Host restricts matches to these hostnames (case-insensitive, port
	// stripped). Empty means any host.
	Host []string `toml:"host"`
	// Path is the encoded path rule: "=foo" (Equal), "~foo" (Regex), or
	// a bare prefix.
	Path string `toml:"path"`
	// Rewrite is "<regex> <replacement>", applied to the path only.
	Rewrite string `toml:"rewrite"`
	// Upstream names the UpstreamConfig surviving requests forward to.
	Upstream string `toml:"upstream"`
	// Plugins lists plugin names bound to this location; each plugin's
	// own Step field (in the plugins section) decides which lifecycle
	// phase it runs at.
	Plugins []string `toml:"plugins"`
}

// ServerConfig is one listening server: a bind address and the ordered
// list of locations it tries, first match wins.
type ServerConfig struct {
	Name string `toml:"-"`
	// Listen is host:port to bind, e.g. ":8080".
	Listen string `toml:"listen" validate:"required"`
	// Locations is the ordered list of location names tried for every
	// request on this server.
	Locations []string `toml:"locations" validate:"required,min=1"`
	// AccessLogTemplate is the token template rendered once per request
	// (see internal/accesslog). Empty disables access logging.
	AccessLogTemplate string `toml:"access_log"`
	// AccessLogFile is where rendered lines are written; empty means
	// stdout.
	AccessLogFile string `toml:"access_log_file"`
}

// Snapshot is an immutable configuration value, published atomically by
// the reload controller. Two snapshots are comparable with Diff.
type Snapshot struct {
	Basic     BasicConfig                `toml:"basic"`
	Upstreams map[string]*UpstreamConfig `toml:"upstreams"`
	Locations map[string]*LocationConfig `toml:"locations"`
	Servers   map[string]*ServerConfig   `toml:"servers"`
	Plugins   map[string]RawPluginConfig `toml:"plugins"`
}

// New returns an empty, zero-value Snapshot with initialized maps.
func New() *Snapshot {
	return &Snapshot{
		Upstreams: map[string]*UpstreamConfig{},
		Locations: map[string]*LocationConfig{},
		Servers:   map[string]*ServerConfig{},
		Plugins:   map[string]RawPluginConfig{},
	}
}

// Load decodes a TOML configuration file into a validated Snapshot. If
// strict is true, unrecognized keys cause a decode error; otherwise they
// are ignored (matching toml.DecodeFile's default permissiveness).
func Load(path string, strict bool) (*Snapshot, error) {
	s := New()
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if strict {
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unrecognized config keys: %s", strings.Join(keys, ", "))
		}
	}
	s.fillNames()
	s.applyDefaults()
	s.loadEnvOverrides()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// fillNames copies each map key into its value's Name field, since TOML
// tables don't carry their own key inward.
func (s *Snapshot) fillNames() {
	for k, v := range s.Upstreams {
		v.Name = k
	}
	for k, v := range s.Locations {
		v.Name = k
	}
	for k, v := range s.Servers {
		v.Name = k
	}
}

// Validate enforces the structural invariants from the data model: every
// location referenced by a server must exist, every location's path
// rule must compile, and every location's upstream (if set) must exist.
func (s *Snapshot) Validate() error {
	if err := structValidator.Struct(&s.Basic); err != nil {
		return fmt.Errorf("basic: %w", err)
	}
	for name, u := range s.Upstreams {
		if err := structValidator.Struct(u); err != nil {
			return fmt.Errorf("upstream %q: %w", name, err)
		}
	}
	for name, srv := range s.Servers {
		if err := structValidator.Struct(srv); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
	}
	for name, loc := range s.Locations {
		if _, _, err := ParsePathRule(loc.Path); err != nil {
			return fmt.Errorf("location %q: %w", name, err)
		}
		if loc.Rewrite != "" {
			if _, _, err := ParseRewriteRule(loc.Rewrite); err != nil {
				return fmt.Errorf("location %q: invalid rewrite rule: %w", name, err)
			}
		}
		if loc.Upstream != "" {
			if _, ok := s.Upstreams[loc.Upstream]; !ok {
				return fmt.Errorf("location %q: references unknown upstream %q", name, loc.Upstream)
			}
		}
	}
	for name, srv := range s.Servers {
		for _, lname := range srv.Locations {
			if _, ok := s.Locations[lname]; !ok {
				return fmt.Errorf("server %q: references unknown location %q", name, lname)
			}
		}
	}
	for name, p := range s.Plugins {
		step, _ := p["step"].(string)
		if step != "request" && step != "response" {
			return fmt.Errorf("plugin %q: step must be \"request\" or \"response\", got %q", name, step)
		}
	}
	return nil
}

// PathRuleKind classifies how a location's path pattern is matched.
type PathRuleKind int

const (
	// PathPrefix matches when the request path starts with the pattern.
	PathPrefix PathRuleKind = iota
	// PathEqual matches when the request path equals the pattern exactly.
	PathEqual
	// PathRegex matches when the pattern, compiled as a regex, matches
	// the request path anywhere.
	PathRegex
)

func (k PathRuleKind) String() string {
	switch k {
	case PathEqual:
		return "equal"
	case PathRegex:
		return "regex"
	default:
		return "prefix"
	}
}

// ParsePathRule classifies a configured path pattern by its leading
// character: "=pattern" is Equal, "~pattern" is Regex (the "~" is
// stripped), anything else is Prefix. For Regex it also compiles the
// pattern so construction-time errors surface immediately.
func ParsePathRule(pattern string) (PathRuleKind, string, error) {
	if strings.HasPrefix(pattern, "=") {
		rest := pattern[1:]
		if rest == "" {
			return PathEqual, "", fmt.Errorf("equal path rule has empty pattern")
		}
		return PathEqual, rest, nil
	}
	if strings.HasPrefix(pattern, "~") {
		rest := pattern[1:]
		if _, err := regexp.Compile(rest); err != nil {
			return PathRegex, rest, fmt.Errorf("invalid regex path rule %q: %w", rest, err)
		}
		return PathRegex, rest, nil
	}
	if pattern == "" {
		return PathPrefix, "", fmt.Errorf("prefix path rule has empty pattern")
	}
	return PathPrefix, pattern, nil
}

// ParseRewriteRule splits "<regex> <replacement>" on the first space and
// compiles the regex half.
func ParseRewriteRule(rule string) (*regexp.Regexp, string, error) {
	idx := strings.IndexByte(rule, ' ')
	if idx < 0 {
		return nil, "", fmt.Errorf("rewrite rule %q missing replacement (expected \"<regex> <replacement>\")", rule)
	}
	pattern, replacement := rule[:idx], rule[idx+1:]
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, "", fmt.Errorf("invalid rewrite regex %q: %w", pattern, err)
	}
	return re, replacement, nil
}

// Copy returns a deep-enough copy of the Snapshot for safe concurrent
// use: every map and the values it points to are cloned.
func (s *Snapshot) Copy() *Snapshot {
	nc := New()
	nc.Basic = s.Basic
	for k, v := range s.Upstreams {
		cp := *v
		cp.Addrs = append([]string(nil), v.Addrs...)
		nc.Upstreams[k] = &cp
	}
	for k, v := range s.Locations {
		cp := *v
		cp.Host = append([]string(nil), v.Host...)
		cp.Plugins = append([]string(nil), v.Plugins...)
		nc.Locations[k] = &cp
	}
	for k, v := range s.Servers {
		cp := *v
		cp.Locations = append([]string(nil), v.Locations...)
		nc.Servers[k] = &cp
	}
	for k, v := range s.Plugins {
		cp := RawPluginConfig{}
		for pk, pv := range v {
			cp[pk] = pv
		}
		nc.Plugins[k] = cp
	}
	return nc
}

// String renders the Snapshot back to TOML, for the debug config
// handler. Secrets (webhook URLs with embedded credentials, plugin
// values named like auth tokens) are not redacted here; operators
// exposing the config handler should restrict access to it.
func (s *Snapshot) String() string {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	_ = enc.Encode(s)
	return buf.String()
}

// sortedKeys returns m's keys sorted, for deterministic diff output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
