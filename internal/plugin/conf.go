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
	"fmt"
	"time"

	"github.com/Comcast/proxygate/internal/config"
)

// getStepConf reads the required "step" key. Unlike the other getters
// it returns an error: a plugin with no valid step can never be
// scheduled and construction should fail outright.
func getStepConf(raw config.RawPluginConfig) (string, error) {
	step := getStrConf(raw, "step")
	if step != StepRequest && step != StepResponse {
		return "", fmt.Errorf("step must be %q or %q, got %q", StepRequest, StepResponse, step)
	}
	return step, nil
}

func getStrConf(raw config.RawPluginConfig, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getBoolConf(raw config.RawPluginConfig, key string) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// hasConf reports whether key was present at all in the decoded TOML
// table, distinct from being present-but-false.
func hasConf(raw config.RawPluginConfig, key string) bool {
	_, ok := raw[key]
	return ok
}

func getStrSliceConf(raw config.RawPluginConfig, key string) []string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		if single, ok := v.(string); ok {
			return []string{single}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getDurationConf(raw config.RawPluginConfig, key string, def time.Duration) (time.Duration, error) {
	s := getStrConf(raw, key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q for %s: %w", s, key, err)
	}
	return d, nil
}

func getByteSizeConf(raw config.RawPluginConfig, key string, def int64) (int64, error) {
	s := getStrConf(raw, key)
	if s == "" {
		return def, nil
	}
	n, err := parseByteSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q for %s: %w", s, key, err)
	}
	return n, nil
}

// parseByteSize parses strings like "50mb", "5MB", "1024" (bytes,
// base-10 units — "kb"/"mb"/"gb" are 1000-based, matching the
// bytesize crate's default the reference config uses).
func parseByteSize(s string) (int64, error) {
	var num float64
	var unit string
	n, err := fmt.Sscanf(s, "%f%s", &num, &unit)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("cannot parse byte size %q", s)
	}
	switch unit {
	case "", "b", "B":
		return int64(num), nil
	case "kb", "KB", "Kb":
		return int64(num * 1000), nil
	case "mb", "MB", "Mb":
		return int64(num * 1000 * 1000), nil
	case "gb", "GB", "Gb":
		return int64(num * 1000 * 1000 * 1000), nil
	default:
		return 0, fmt.Errorf("unrecognized byte size unit %q", unit)
	}
}
