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

// Package tracing wires OpenTelemetry spans around the proxy's core
// steps (location match, plugin pipeline, cache lookup, upstream
// forward) so a trace backend can show where a request spent its
// time. It mirrors the teacher's tracing shape (PrepareRequest at the
// edge, SpanFromContext for everything downstream of it) against this
// module's own span names instead of origin/handler names.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/api/core"
	"go.opentelemetry.io/otel/api/distributedcontext"
	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/trace"
	"go.opentelemetry.io/otel/plugin/httptrace"
)

// ServiceName is the tracer name registered with the global provider.
const ServiceName = "proxygate"

// Name returns the tracer name for this application.
func Name() string {
	return fmt.Sprintf("%s/%s", ServiceName, version)
}

// version is set by cmd/proxyd at startup through SetVersion, from the
// build-time version string main receives via -ldflags.
var version = "dev"

// SetVersion records the running binary's version for Name.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

type ctxAttrType struct{}
type ctxSpanCtxType struct{}
type ctxTracerType struct{}

var (
	attrKey      = ctxAttrType{}
	spanCtxKey   = ctxSpanCtxType{}
	tracerCtxKey = ctxTracerType{}
)

// PrepareRequest extracts any incoming trace context from r's headers,
// starts the request's root span named spanName, and returns a request
// carrying a context downstream spans can attach to with SpanFromContext.
func PrepareRequest(r *http.Request, spanName string) (*http.Request, trace.Span) {
	attrs, entries, spanCtx := httptrace.Extract(r.Context(), r)

	ctx := distributedcontext.WithMap(
		r.Context(),
		distributedcontext.NewMap(distributedcontext.MapUpdate{MultiKV: entries}),
	)
	ctx = context.WithValue(ctx, attrKey, attrs)
	ctx = context.WithValue(ctx, spanCtxKey, spanCtx)
	ctx = context.WithValue(ctx, tracerCtxKey, Name())

	tr := global.TraceProvider().Tracer(Name())
	ctx, span := tr.Start(ctx, spanName, trace.WithAttributes(attrs...), trace.ChildOf(spanCtx))
	return r.WithContext(ctx), span
}

// SpanFromContext starts a child span named spanName under whatever
// span PrepareRequest (or a previous SpanFromContext call) placed on
// ctx. It is safe to call on a ctx that never saw PrepareRequest —
// SpanFromContext then starts a root span of its own.
func SpanFromContext(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracerName, ok := ctx.Value(tracerCtxKey).(string)
	if !ok {
		tracerName = Name()
	}
	tr := global.TraceProvider().Tracer(tracerName)

	attrs, _ := ctx.Value(attrKey).([]core.KeyValue)
	spanCtx, _ := ctx.Value(spanCtxKey).(core.SpanContext)

	return tr.Start(ctx, spanName, trace.WithAttributes(attrs...), trace.ChildOf(spanCtx))
}
