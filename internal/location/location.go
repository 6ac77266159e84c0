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

// Package location builds immutable Location values from config and
// implements host+path matching and path rewriting (spec §4.B).
package location

import (
	"net"
	"regexp"
	"strings"

	"github.com/Comcast/proxygate/internal/config"
)

// Location is immutable after New returns it; its lifetime is one
// configuration generation.
type Location struct {
	Name string

	hosts map[string]bool // lower-cased, empty means "any host"

	pathKind    config.PathRuleKind
	pathPattern string
	pathRegex   *regexp.Regexp // non-nil only for PathRegex

	rewriteRegex       *regexp.Regexp
	rewriteReplacement string
	hasRewrite         bool

	Upstream string
	Plugins  []string
}

// New compiles a LocationConfig into a Location. Invalid path or
// rewrite rules are a construction-time error (spec: "invalid regex at
// construction is a fatal configuration error").
func New(name string, lc *config.LocationConfig) (*Location, error) {
	kind, pattern, err := config.ParsePathRule(lc.Path)
	if err != nil {
		return nil, err
	}
	loc := &Location{
		Name:        name,
		pathKind:    kind,
		pathPattern: pattern,
		Upstream:    lc.Upstream,
		Plugins:     append([]string(nil), lc.Plugins...),
	}
	if kind == config.PathRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		loc.pathRegex = re
	}
	if len(lc.Host) > 0 {
		loc.hosts = make(map[string]bool, len(lc.Host))
		for _, h := range lc.Host {
			loc.hosts[strings.ToLower(h)] = true
		}
	}
	if lc.Rewrite != "" {
		re, replacement, err := config.ParseRewriteRule(lc.Rewrite)
		if err != nil {
			return nil, err
		}
		loc.rewriteRegex = re
		loc.rewriteReplacement = replacement
		loc.hasRewrite = true
	}
	return loc, nil
}

// Matched reports whether this Location accepts host+path. host may
// include a port, which is stripped; comparison is case-insensitive.
// An empty host list matches any host.
func (l *Location) Matched(host, path string) bool {
	if len(l.hosts) > 0 {
		h := stripPort(strings.ToLower(host))
		if !l.hosts[h] {
			return false
		}
	}
	switch l.pathKind {
	case config.PathEqual:
		return path == l.pathPattern
	case config.PathRegex:
		return l.pathRegex.MatchString(path)
	default:
		return strings.HasPrefix(path, l.pathPattern)
	}
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// Rewrite applies the location's configured rewrite rule to path and
// reports whether the path changed. Zero substitutions is not an
// error — the path comes back unchanged and changed is false.
func (l *Location) Rewrite(path string) (rewritten string, changed bool) {
	if !l.hasRewrite {
		return path, false
	}
	out := l.rewriteRegex.ReplaceAllString(path, l.rewriteReplacement)
	return out, out != path
}

// Table is the ordered list of Locations a Server tries, first match
// wins.
type Table struct {
	locations []*Location
}

// NewTable builds a Table from the named locations in order.
func NewTable(names []string, all map[string]*Location) *Table {
	t := &Table{locations: make([]*Location, 0, len(names))}
	for _, n := range names {
		if loc, ok := all[n]; ok {
			t.locations = append(t.locations, loc)
		}
	}
	return t
}

// Match returns the first Location in the table that accepts host+path,
// or nil if none do.
func (t *Table) Match(host, path string) *Location {
	for _, loc := range t.locations {
		if loc.Matched(host, path) {
			return loc
		}
	}
	return nil
}
