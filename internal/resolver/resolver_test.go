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

package resolver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Comcast/proxygate/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLiteralAndRequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/foo?x=1", nil)
	tpl := Compile("{method} {path} host={host}")
	got := tpl.Render(&Context{Request: req})
	assert.Equal(t, "GET /foo host=example.com", got)
}

func TestRenderStateField(t *testing.T) {
	st := state.New()
	st.Location = "api"
	st.ResponseStatus = 204
	tpl := Compile("{:location} {status}")
	got := tpl.Render(&Context{State: st})
	assert.Equal(t, "api 204", got)
}

func TestRenderUnknownTokenRendersEmpty(t *testing.T) {
	tpl := Compile("value={:nonexistent}")
	got := tpl.Render(&Context{State: state.New()})
	require.Equal(t, "value=", got)
}

func TestRenderMissingRequestNeverPanics(t *testing.T) {
	tpl := Compile("{method} {:location}")
	got := tpl.Render(&Context{})
	assert.Equal(t, " ", got)
}

func TestRenderUnterminatedBraceIsLiteral(t *testing.T) {
	tpl := Compile("abc{method")
	got := tpl.Render(&Context{})
	assert.Equal(t, "abc{method", got)
}

func TestRenderCookieField(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "abc123"})
	tpl := Compile("{~sid}")
	got := tpl.Render(&Context{Request: req})
	assert.Equal(t, "abc123", got)
}

func TestRenderHeaderField(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("X-Trace", "xyz")
	tpl := Compile("{>X-Trace}")
	got := tpl.Render(&Context{Request: req})
	assert.Equal(t, "xyz", got)
}

func TestRenderHumanSizeSuffix(t *testing.T) {
	st := state.New()
	st.ResponseBodySize = 2048
	tpl := Compile("{response_size_human}")
	got := tpl.Render(&Context{State: st})
	assert.Equal(t, "2.0KB", got)
}
