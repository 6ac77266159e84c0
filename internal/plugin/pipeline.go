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
	"fmt"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/perr"
	"github.com/Comcast/proxygate/internal/state"
)

// Registry builds named plugin instances from raw config and binds
// them into per-location pipelines. It owns the process-wide Cache
// collaborator singletons (spec §9: "an explicit registry object
// created at startup and threaded through constructors").
type Registry struct {
	shared *SharedCache

	requestPlugins  map[string]RequestPlugin
	responsePlugins map[string]ResponsePlugin
}

// NewRegistry constructs every plugin named in snap.Plugins, rejecting
// the individual plugin (not the whole load) on a malformed config
// (spec §7: PluginInvalid "blocks that plugin's activation; does not
// crash the process"). It returns the registry plus one PluginInvalid
// error per rejected plugin, for the caller to log.
func NewRegistry(snap *config.Snapshot, shared *SharedCache) (*Registry, []error) {
	r := &Registry{
		shared:          shared,
		requestPlugins:  map[string]RequestPlugin{},
		responsePlugins: map[string]ResponsePlugin{},
	}
	var errs []error
	for name, raw := range snap.Plugins {
		category := getStrConf(raw, "category")
		if category == "" {
			category = name
		}
		switch category {
		case CategoryCache:
			p, err := NewCache(name, raw, shared)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.requestPlugins[name] = p
		case CategoryResponseHeaders:
			p, err := NewResponseHeaders(name, raw)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.responsePlugins[name] = p
		default:
			errs = append(errs, &perr.PluginInvalid{Plugin: name, Message: fmt.Sprintf("unknown plugin category %q", category)})
		}
	}
	return r, errs
}

// Pipeline is the ordered, location-bound sequence of plugins run at
// each lifecycle step.
type Pipeline struct {
	request  []RequestPlugin
	response []ResponsePlugin
}

// Build resolves pluginNames (a location's configured plugin list)
// against the registry, splitting them into request- and
// response-step sequences in configured order. Names the registry has
// no plugin for (rejected at construction, or simply unknown) are
// skipped — they were already reported as load-time errors.
func (r *Registry) Build(pluginNames []string) *Pipeline {
	p := &Pipeline{}
	for _, name := range pluginNames {
		if rp, ok := r.requestPlugins[name]; ok {
			p.request = append(p.request, rp)
		}
		if sp, ok := r.responsePlugins[name]; ok {
			p.response = append(p.response, sp)
		}
	}
	return p
}

// RunRequest executes the request-step plugins in order. The first
// plugin to return a non-nil HTTPResponse short-circuits: remaining
// request-step plugins are skipped and the synthesized response is
// returned so the caller can move straight to the response step
// without contacting upstream (spec §4.C).
func (p *Pipeline) RunRequest(session Session, st *state.State) (*HTTPResponse, error) {
	for _, rp := range p.request {
		resp, err := rp.Handle(session, st)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// RunResponse executes the response-step plugins in order. None of
// them can short-circuit; a non-nil body return overrides the
// response body for that plugin's step.
func (p *Pipeline) RunResponse(session Session, st *state.State, resp ResponseHeader) ([]byte, error) {
	var body []byte
	for _, sp := range p.response {
		b, err := sp.Handle(session, st, resp)
		if err != nil {
			continue
		}
		if b != nil {
			body = b
		}
	}
	return body, nil
}
