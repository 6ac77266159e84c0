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

// Package log provides the leveled, structured logger used throughout
// the proxy core. It wraps go-kit's log.Logger so call sites look like
// log.Info("message", log.Pairs{"key": "value"}) rather than building
// keyvals slices by hand everywhere.
package log

import (
	"os"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Pairs is a convenience alias for structured logging fields.
type Pairs map[string]interface{}

var (
	mtx      sync.Mutex
	base     kitlog.Logger
	logger   kitlog.Logger
	curLevel = "info"
	warned   = make(map[string]bool)
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput reconfigures the base writer for the logger, preserving the
// current level filter. Used at package init and at startup when a
// log file is configured.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	mtx.Lock()
	b := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	base = kitlog.With(b, "ts", kitlog.DefaultTimestampUTC)
	lvl := curLevel
	mtx.Unlock()
	SetLevel(lvl)
}

// SetLevel applies a minimum severity filter ("debug", "info", "warn",
// "error"); anything below it is dropped before it reaches the writer.
func SetLevel(name string) {
	mtx.Lock()
	defer mtx.Unlock()
	var opt level.Option
	switch name {
	case "debug", "DEBUG", "trace", "TRACE":
		opt = level.AllowDebug()
	case "warn", "WARN", "warning", "WARNING":
		opt = level.AllowWarn()
	case "error", "ERROR":
		opt = level.AllowError()
	default:
		name = "info"
		opt = level.AllowInfo()
	}
	curLevel = name
	logger = level.NewFilter(base, opt)
}

func current() kitlog.Logger {
	mtx.Lock()
	defer mtx.Unlock()
	return logger
}

func keyvals(msg string, p Pairs) []interface{} {
	kv := make([]interface{}, 0, 2+len(p)*2)
	kv = append(kv, "msg", msg)
	for k, v := range p {
		kv = append(kv, k, v)
	}
	return kv
}

// Debug logs at debug level with structured fields.
func Debug(msg string, p Pairs) { level.Debug(current()).Log(keyvals(msg, p)...) }

// Info logs at info level with structured fields.
func Info(msg string, p Pairs) { level.Info(current()).Log(keyvals(msg, p)...) }

// Warn logs at warn level with structured fields.
func Warn(msg string, p Pairs) { level.Warn(current()).Log(keyvals(msg, p)...) }

// Error logs at error level with structured fields.
func Error(msg string, p Pairs) { level.Error(current()).Log(keyvals(msg, p)...) }

// WarnOnce logs a warning only the first time it is seen for the given
// key during this process's lifetime, for noisy conditions (like clock
// skew against an upstream) that should not spam the log on every
// request.
func WarnOnce(key, msg string, p Pairs) {
	mtx.Lock()
	if warned[key] {
		mtx.Unlock()
		return
	}
	warned[key] = true
	mtx.Unlock()
	Warn(msg, p)
}
