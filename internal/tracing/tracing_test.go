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

package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRequestAndChildSpansShareATracer(t *testing.T) {
	exporter, err := initRecorder()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://x/y", nil)
	req, rootSpan := PrepareRequest(req, "ServeHTTP")

	ctx, matchSpan := SpanFromContext(req.Context(), "MatchLocation")
	_, pipelineSpan := SpanFromContext(ctx, "RunPipeline")

	pipelineSpan.End()
	matchSpan.End()
	rootSpan.End()

	assert.Equal(t, []string{"RunPipeline", "MatchLocation", "ServeHTTP"}, exporter.Names())
}

func TestSpanFromContextWithoutPrepareRequestStartsRootSpan(t *testing.T) {
	_, err := initRecorder()
	require.NoError(t, err)

	_, span := SpanFromContext(req(t).Context(), "CacheLookup")
	assert.NotPanics(t, span.End)
}

func TestParseImplementationRejectsUnknown(t *testing.T) {
	_, err := ParseImplementation("zipkin")
	assert.Error(t, err)

	impl, err := ParseImplementation("jaeger")
	require.NoError(t, err)
	assert.Equal(t, Jaeger, impl)
}

func req(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "http://x/y", nil)
}
