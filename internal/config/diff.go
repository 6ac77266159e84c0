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

import (
	"fmt"
	"reflect"
)

// Diff is the result of comparing two Snapshots section-by-section.
type Diff struct {
	// Changed holds the set of top-level section names that differ.
	Changed map[string]bool
	// Details is a human-readable line per change, for logging and
	// webhook notifications.
	Details []string
	// ServerLocationsChanged names servers whose attached location list
	// changed, tracked separately from SectionServers because the
	// reload controller treats a pure location-list reshuffle as
	// hot-reloadable even when nothing else about the server changed.
	ServerLocationsChanged map[string]bool
}

// Empty reports whether the diff found no changes of any kind.
func (d *Diff) Empty() bool {
	return len(d.Changed) == 0 && len(d.ServerLocationsChanged) == 0
}

// Diff compares s (the current snapshot) against desired and returns
// the set of changed sections plus a human-readable detail list. It
// never mutates either snapshot.
func (s *Snapshot) Diff(desired *Snapshot) *Diff {
	d := &Diff{
		Changed:                map[string]bool{},
		ServerLocationsChanged: map[string]bool{},
	}

	if !reflect.DeepEqual(s.Basic, desired.Basic) {
		d.Changed[SectionBasic] = true
		d.Details = append(d.Details, "basic config changed")
	}

	if diffMap(s.Upstreams, desired.Upstreams, func(a, b *UpstreamConfig) bool {
		return reflect.DeepEqual(a, b)
	}, &d.Details, "upstream") {
		d.Changed[SectionUpstreams] = true
	}

	if diffMap(s.Locations, desired.Locations, func(a, b *LocationConfig) bool {
		return reflect.DeepEqual(a, b)
	}, &d.Details, "location") {
		d.Changed[SectionLocations] = true
	}

	if diffMap(s.Plugins, desired.Plugins, func(a, b RawPluginConfig) bool {
		return reflect.DeepEqual(a, b)
	}, &d.Details, "plugin") {
		d.Changed[SectionPlugins] = true
	}

	// Servers: compare everything except Locations separately, so a
	// pure location-list change is reported only via
	// ServerLocationsChanged, never forcing SectionServers to mark
	// needs_restart on its own.
	serverNonLocationChanged := diffMap(s.Servers, desired.Servers, func(a, b *ServerConfig) bool {
		if a == nil || b == nil {
			return a == b
		}
		ac, bc := *a, *b
		ac.Locations, bc.Locations = nil, nil
		return reflect.DeepEqual(ac, bc)
	}, &d.Details, "server")
	if serverNonLocationChanged {
		d.Changed[SectionServers] = true
	}
	for name, srv := range desired.Servers {
		old, ok := s.Servers[name]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(old.Locations, srv.Locations) {
			d.ServerLocationsChanged[name] = true
			d.Details = append(d.Details, fmt.Sprintf("server %s locations changed", name))
		}
	}

	return d
}

// diffMap reports whether any key in a or b is missing from the other,
// or present in both with a value that differs by eq. It appends one
// detail line per differing key.
func diffMap[V any](a, b map[string]V, eq func(V, V) bool, details *[]string, label string) bool {
	changed := false
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			changed = true
			*details = append(*details, fmt.Sprintf("%s %s removed", label, k))
			continue
		}
		if !eq(av, bv) {
			changed = true
			*details = append(*details, fmt.Sprintf("%s %s changed", label, k))
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			changed = true
			*details = append(*details, fmt.Sprintf("%s %s added", label, k))
		}
	}
	return changed
}
