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

package accesslog

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Comcast/proxygate/internal/resolver"
	"github.com/Comcast/proxygate/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestRenderWritesOneLine(t *testing.T) {
	f := New("{method} {path} {status}", "")
	var buf bytes.Buffer
	f.out = &buf

	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	st := state.New()
	st.ResponseStatus = 200

	f.Render(&resolver.Context{Request: req, State: st})
	assert.Equal(t, "GET /y 200\n", buf.String())
}

func TestRenderStripsEmbeddedNewlines(t *testing.T) {
	f := New("{>X-Evil}", "")
	var buf bytes.Buffer
	f.out = &buf

	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	req.Header.Set("X-Evil", "line1\nline2")
	f.Render(&resolver.Context{Request: req, State: state.New()})
	assert.Equal(t, "line1 line2\n", buf.String())
}

func TestUnknownTokenRendersEmptyNeverAborts(t *testing.T) {
	f := New("before-{nonexistent_field}-after", "")
	var buf bytes.Buffer
	f.out = &buf

	f.Render(&resolver.Context{State: state.New()})
	assert.Equal(t, "before--after\n", buf.String())
}
