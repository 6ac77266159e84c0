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
	"fmt"
)

// Implementation selects which exporter backs the global trace provider.
type Implementation int

const (
	// Stdout pretty-prints spans to standard output. It's the default
	// so a fresh checkout produces visible traces without any collector
	// running.
	Stdout Implementation = iota
	// Jaeger exports spans to a Jaeger collector endpoint.
	Jaeger
)

var implementationNames = []string{"stdout", "jaeger"}

func (i Implementation) String() string {
	if i < Stdout || i > Jaeger {
		return "unknown"
	}
	return implementationNames[i]
}

// ParseImplementation maps a config string to an Implementation.
func ParseImplementation(s string) (Implementation, error) {
	for idx, name := range implementationNames {
		if name == s {
			return Implementation(idx), nil
		}
	}
	return Stdout, fmt.Errorf("unknown tracing implementation %q", s)
}

// Init installs the global trace provider for impl and returns a flush
// function the caller must invoke on shutdown.
func Init(impl Implementation, collectorURL string) (func(), error) {
	switch impl {
	case Jaeger:
		return initJaeger(collectorURL)
	default:
		return initStdout()
	}
}
