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
	"strings"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/perr"
	"github.com/Comcast/proxygate/internal/resolver"
	"github.com/Comcast/proxygate/internal/state"
)

const CategoryResponseHeaders = "response_headers"

type headerPair struct {
	name     string
	template *resolver.Template
}

// ResponseHeaders is the response-step plugin that adds, removes, and
// sets response headers, each value optionally templated through the
// resolver (spec §4.A, scenario 5).
type ResponseHeaders struct {
	name string
	step string

	addHeaders    []headerPair
	removeHeaders []string
	setHeaders    []headerPair
}

// NewResponseHeaders constructs the plugin from its raw TOML config.
func NewResponseHeaders(name string, raw config.RawPluginConfig) (*ResponseHeaders, error) {
	step, err := getStepConf(raw)
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}
	if step != StepResponse {
		return nil, &perr.PluginInvalid{Plugin: name, Message: "response headers plugin must declare step = \"response\""}
	}

	add, err := parseHeaderPairs(getStrSliceConf(raw, "add_headers"))
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}
	set, err := parseHeaderPairs(getStrSliceConf(raw, "set_headers"))
	if err != nil {
		return nil, &perr.PluginInvalid{Plugin: name, Message: err.Error()}
	}

	return &ResponseHeaders{
		name:          name,
		step:          step,
		addHeaders:    add,
		removeHeaders: getStrSliceConf(raw, "remove_headers"),
		setHeaders:    set,
	}, nil
}

// parseHeaderPairs splits each "Name:Value" entry on the first colon
// and compiles Value as a resolver template.
func parseHeaderPairs(entries []string) ([]headerPair, error) {
	pairs := make([]headerPair, 0, len(entries))
	for _, e := range entries {
		idx := strings.IndexByte(e, ':')
		if idx < 0 {
			return nil, &invalidHeaderPairError{entry: e}
		}
		name := strings.TrimSpace(e[:idx])
		value := strings.TrimSpace(e[idx+1:])
		pairs = append(pairs, headerPair{name: name, template: resolver.Compile(value)})
	}
	return pairs, nil
}

type invalidHeaderPairError struct{ entry string }

func (e *invalidHeaderPairError) Error() string {
	return "header entry " + e.entry + " is not \"Name:Value\""
}

func (h *ResponseHeaders) Name() string     { return h.name }
func (h *ResponseHeaders) Category() string { return CategoryResponseHeaders }
func (h *ResponseHeaders) Step() string     { return h.step }

// Handle implements ResponsePlugin. Order is fixed: add, then remove,
// then set (spec §8 scenario 5).
func (h *ResponseHeaders) Handle(session Session, st *state.State, resp ResponseHeader) ([]byte, error) {
	ctx := &resolver.Context{Request: session.Request(), State: st}
	for _, p := range h.addHeaders {
		resp.AppendHeader(p.name, p.template.Render(ctx))
	}
	for _, name := range h.removeHeaders {
		resp.RemoveHeader(name)
	}
	for _, p := range h.setHeaders {
		resp.InsertHeader(p.name, p.template.Render(ctx))
	}
	return nil, nil
}
