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
	"bytes"
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/api/global"
	export "go.opentelemetry.io/otel/sdk/export/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// recorderExporter buffers exported spans in memory instead of shipping
// them anywhere, so tests can assert on what got traced without a live
// collector.
type recorderExporter struct {
	buf   bytes.Buffer
	spans []*export.SpanData
}

func (e *recorderExporter) ExportSpan(_ context.Context, data *export.SpanData) {
	e.spans = append(e.spans, data)
	if b, err := json.Marshal(data); err == nil {
		e.buf.Write(append(b, '\n'))
	}
}

// Names returns the span names recorded so far, in export order.
func (e *recorderExporter) Names() []string {
	names := make([]string, len(e.spans))
	for i, s := range e.spans {
		names[i] = s.Name
	}
	return names
}

// initRecorder installs a recording trace provider as the global
// provider and returns the exporter so the caller can inspect it.
func initRecorder() (*recorderExporter, error) {
	exporter := &recorderExporter{}
	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.AlwaysSample()}),
		sdktrace.WithSyncer(exporter),
	)
	if err != nil {
		return nil, err
	}
	global.SetTraceProvider(tp)
	return exporter, nil
}
