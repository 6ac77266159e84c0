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

package config

import "os"

// Environment variables that override the corresponding basic config
// field after the file is decoded, the same "file < env < flags"
// precedence the teacher's loader applied with its own flag/env pair.
// CLI flag overrides are layered on top of these by cmd/proxyd via
// viper, which binds directly onto the already-loaded Snapshot.
const (
	envLogLevel    = "PROXYD_LOG_LEVEL"
	envListenAddr  = "PROXYD_LISTEN_ADDR"
	envWebhookURL  = "PROXYD_WEBHOOK_URL"
)

func (s *Snapshot) loadEnvOverrides() {
	if v := os.Getenv(envLogLevel); v != "" {
		s.Basic.LogLevel = v
	}
	if v := os.Getenv(envListenAddr); v != "" {
		s.Basic.ListenAddress = v
	}
	if v := os.Getenv(envWebhookURL); v != "" {
		s.Basic.WebhookURL = v
	}
}
