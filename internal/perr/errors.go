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

// Package perr defines the typed error kinds the proxy core raises.
// Only config validation at startup is fatal; every other kind here is
// meant to be logged and absorbed by its caller.
package perr

import "fmt"

// ConfigInvalid indicates a configuration snapshot was rejected at load
// or while applying a diff. The caller must keep running the current
// snapshot.
type ConfigInvalid struct {
	Section string
	Err     error
}

func (e *ConfigInvalid) Error() string {
	return fmt.Sprintf("config invalid in section %q: %v", e.Section, e.Err)
}

func (e *ConfigInvalid) Unwrap() error { return e.Err }

// PluginInvalid indicates a plugin's configuration is malformed (bad
// step, bad duration, bad regex, bad byte size). Raised at load time;
// blocks that single plugin's activation.
type PluginInvalid struct {
	Plugin  string
	Message string
}

func (e *PluginInvalid) Error() string {
	return fmt.Sprintf("plugin %s invalid: %s", e.Plugin, e.Message)
}

// CacheTransient indicates a recoverable cache-subsystem fault: storage
// insertion failed, a lock timed out, or eviction could not free enough
// space. Callers fall back to treating the request as a cache miss.
type CacheTransient struct {
	Op  string
	Err error
}

func (e *CacheTransient) Error() string {
	return fmt.Sprintf("cache transient error during %s: %v", e.Op, e.Err)
}

func (e *CacheTransient) Unwrap() error { return e.Err }

// Fatal wraps an error that should abort startup, reserved for
// configuration validation failures discovered before the proxy ever
// begins serving traffic.
type Fatal struct {
	Err error
}

func (e *Fatal) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }

func (e *Fatal) Unwrap() error { return e.Err }
