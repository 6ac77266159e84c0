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
	"net/http/httptest"
	"testing"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponseHeader struct {
	status  int
	headers http.Header
}

func newFakeResponseHeader() *fakeResponseHeader {
	return &fakeResponseHeader{status: 200, headers: http.Header{}}
}

func (f *fakeResponseHeader) Status() int { return f.status }
func (f *fakeResponseHeader) AppendHeader(name, value string) {
	f.headers.Add(name, value)
}
func (f *fakeResponseHeader) InsertHeader(name, value string) {
	f.headers.Set(name, value)
}
func (f *fakeResponseHeader) RemoveHeader(name string) {
	f.headers.Del(name)
}

func TestResponseHeadersAddRemoveSetOrder(t *testing.T) {
	raw := config.RawPluginConfig{
		"step":           "response",
		"add_headers":    []interface{}{"X-Service:1", "X-Service:2"},
		"set_headers":    []interface{}{"X-Response-Id:123"},
		"remove_headers": []interface{}{"Content-Type"},
	}
	h, err := NewResponseHeaders("rh", raw)
	require.NoError(t, err)

	resp := newFakeResponseHeader()
	resp.headers.Set("Content-Type", "application/json")

	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	sess := &fakeSession{req: req, cache: &fakeCacheControl{}}
	st := state.New()

	body, err := h.Handle(sess, st, resp)
	require.NoError(t, err)
	assert.Nil(t, body)

	assert.Empty(t, resp.headers.Get("Content-Type"))
	assert.Equal(t, []string{"1", "2"}, resp.headers.Values("X-Service"))
	assert.Equal(t, "123", resp.headers.Get("X-Response-Id"))
}

func TestResponseHeadersWrongStepRejected(t *testing.T) {
	_, err := NewResponseHeaders("rh", config.RawPluginConfig{"step": "request"})
	assert.Error(t, err)
}
