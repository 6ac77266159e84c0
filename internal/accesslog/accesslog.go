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

// Package accesslog implements the structured access-log formatter
// (spec §4.E): a template compiled once per server, rendered
// synchronously after every response is sent.
package accesslog

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Comcast/proxygate/internal/resolver"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Formatter renders one log line per request from a compiled template.
// Safe for concurrent use: Render only reads the compiled token
// sequence; writes are serialized through an internal mutex so
// concurrent requests never interleave partial lines.
type Formatter struct {
	template *resolver.Template
	mu       sync.Mutex
	out      io.Writer
	closer   io.Closer
}

// New compiles tmpl and opens the configured output destination. An
// empty file path writes to stdout (matching the teacher's default
// logger behavior when no file is configured).
func New(tmpl string, file string) *Formatter {
	f := &Formatter{template: resolver.Compile(tmpl)}
	if file == "" {
		f.out = os.Stdout
		return f
	}
	lj := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	f.out = lj
	f.closer = lj
	return f
}

// Render formats ctx through the compiled template and writes the
// resulting line, with a trailing newline appended. Newlines embedded
// in resolved field values are replaced with spaces first, so a
// misbehaving header or state field can never split one record across
// multiple lines (spec §4.E: "implementers should replace them with
// spaces to guarantee one-record-per-line").
func (f *Formatter) Render(ctx *resolver.Context) {
	line := f.template.Render(ctx)
	line = strings.ReplaceAll(line, "\n", " ")
	line = strings.ReplaceAll(line, "\r", " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.WriteString(f.out, line)
	_, _ = io.WriteString(f.out, "\n")
}

// Close releases the underlying output file, if any. Stdout is never
// closed.
func (f *Formatter) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}
