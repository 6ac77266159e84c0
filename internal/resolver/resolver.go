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

// Package resolver compiles and renders the token templates used by
// response-header plugins and the access-log formatter (spec §4.A). A
// template is compiled once into an ordered token sequence; rendering
// is a single pass appending to a buffer.
package resolver

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/proxygate/internal/state"
)

// Context is everything a token may read from: the inbound request, the
// outbound response (nil until the response step), and the request's
// State.
type Context struct {
	Request   *http.Request
	Response  *http.Response
	State     *state.State
	RequestID string
}

type tokenKind int

const (
	kindLiteral tokenKind = iota
	kindRequestField
	kindTimeField
	kindSizeField
	kindStatusLatency
	kindStateField
	kindCookieField
	kindHeaderField
)

type token struct {
	kind    tokenKind
	literal string
	name    string
	human   bool
}

// Template is a compiled token sequence, safe for concurrent rendering.
type Template struct {
	tokens []token
	raw    string
}

// Compile parses a template string once into an ordered token sequence.
// Tokens are written as {name}; anything outside braces is a literal
// copied verbatim. An unterminated "{" is treated as a literal too,
// since rendering must never abort on a malformed template.
func Compile(tmpl string) *Template {
	t := &Template{raw: tmpl}
	i := 0
	for i < len(tmpl) {
		start := strings.IndexByte(tmpl[i:], '{')
		if start < 0 {
			t.tokens = append(t.tokens, token{kind: kindLiteral, literal: tmpl[i:]})
			break
		}
		start += i
		if start > i {
			t.tokens = append(t.tokens, token{kind: kindLiteral, literal: tmpl[i:start]})
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			t.tokens = append(t.tokens, token{kind: kindLiteral, literal: tmpl[start:]})
			break
		}
		end += start
		name := tmpl[start+1 : end]
		t.tokens = append(t.tokens, compileToken(name))
		i = end + 1
	}
	return t
}

func compileToken(name string) token {
	switch {
	case strings.HasPrefix(name, ":"):
		return token{kind: kindStateField, name: name[1:]}
	case strings.HasPrefix(name, "~"):
		return token{kind: kindCookieField, name: name[1:]}
	case strings.HasPrefix(name, ">"):
		return token{kind: kindHeaderField, name: name[1:]}
	}
	base, human := name, false
	if strings.HasSuffix(name, "_human") {
		base, human = strings.TrimSuffix(name, "_human"), true
	}
	switch base {
	case "when", "when_utc_iso", "when_unix":
		return token{kind: kindTimeField, name: name}
	case "response_size", "payload_size":
		return token{kind: kindSizeField, name: base, human: human}
	case "status", "latency":
		return token{kind: kindStatusLatency, name: base, human: human}
	case "host", "method", "path", "proto", "query", "remote_addr",
		"client_ip", "scheme", "uri", "referer", "user_agent", "request_id":
		return token{kind: kindRequestField, name: base}
	}
	// Unknown token names render empty; that's the resolver contract
	// (never abort rendering, never render the literal "null").
	return token{kind: kindRequestField, name: base}
}

// Render evaluates the compiled template against ctx and returns the
// rendered line. Both an unknown token name and a recognized token
// with no value available in ctx render as the empty string — never
// the literal "null", and never abort rendering (spec §4.E: "Unknown
// tokens render as the empty string; the engine never aborts
// rendering"). The source this spec was distilled from had a resolver
// branch that appended both the resolved value and the raw template
// bytes on certain paths (spec §9); this resolver picks one outcome
// per token and never appends twice.
func (t *Template) Render(ctx *Context) string {
	var b strings.Builder
	for _, tok := range t.tokens {
		if tok.kind == kindLiteral {
			b.WriteString(tok.literal)
			continue
		}
		if v, ok := resolveToken(tok, ctx); ok {
			b.WriteString(v)
		}
	}
	return b.String()
}

func resolveToken(tok token, ctx *Context) (string, bool) {
	switch tok.kind {
	case kindRequestField:
		return resolveRequestField(tok.name, ctx)
	case kindTimeField:
		return resolveTimeField(tok.name), true
	case kindSizeField:
		return resolveSizeField(tok.name, tok.human, ctx)
	case kindStatusLatency:
		return resolveStatusLatency(tok.name, tok.human, ctx)
	case kindStateField:
		if ctx.State == nil {
			return "", false
		}
		v, ok := ctx.State.Field(tok.name)
		return v, ok
	case kindCookieField:
		return resolveCookie(tok.name, ctx)
	case kindHeaderField:
		return resolveHeader(tok.name, ctx)
	}
	return "", false
}

func resolveRequestField(name string, ctx *Context) (string, bool) {
	if ctx.Request == nil {
		return "", false
	}
	r := ctx.Request
	switch name {
	case "host":
		return r.Host, true
	case "method":
		return r.Method, true
	case "path":
		return r.URL.Path, true
	case "proto":
		return r.Proto, true
	case "query":
		return r.URL.RawQuery, true
	case "remote_addr":
		return r.RemoteAddr, true
	case "client_ip":
		return clientIP(r), true
	case "scheme":
		if r.TLS != nil {
			return "https", true
		}
		return "http", true
	case "uri":
		return r.URL.RequestURI(), true
	case "referer":
		return r.Referer(), true
	case "user_agent":
		return r.UserAgent(), true
	case "request_id":
		return ctx.RequestID, true
	}
	return "", false
}

// clientIP returns the first hop of X-Forwarded-For if present,
// otherwise the TCP peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func resolveTimeField(name string) string {
	now := time.Now()
	switch name {
	case "when":
		return now.Format(time.RFC3339)
	case "when_utc_iso":
		return now.UTC().Format(time.RFC3339)
	case "when_unix":
		return strconv.FormatInt(now.Unix(), 10)
	}
	return ""
}

func resolveSizeField(name string, human bool, ctx *Context) (string, bool) {
	if ctx.State == nil {
		return "", false
	}
	var n int64
	switch name {
	case "response_size":
		n = ctx.State.ResponseBodySize
	case "payload_size":
		n = ctx.State.PayloadSize
	default:
		return "", false
	}
	if human {
		return state.HumanSize(n), true
	}
	return strconv.FormatInt(n, 10), true
}

func resolveStatusLatency(name string, human bool, ctx *Context) (string, bool) {
	if ctx.State == nil {
		return "", false
	}
	switch name {
	case "status":
		return strconv.Itoa(ctx.State.ResponseStatus), true
	case "latency":
		d := ctx.State.Latency()
		if human {
			return state.HumanDuration(d), true
		}
		return strconv.FormatInt(d.Milliseconds(), 10), true
	}
	return "", false
}

func resolveCookie(name string, ctx *Context) (string, bool) {
	if ctx.Request == nil {
		return "", true
	}
	c, err := ctx.Request.Cookie(name)
	if err != nil {
		return "", true
	}
	return c.Value, true
}

func resolveHeader(name string, ctx *Context) (string, bool) {
	if ctx.Request == nil {
		return "", true
	}
	return ctx.Request.Header.Get(name), true
}
