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

// Package webhook is the thin HTTP client the reload controller (and
// anything else) uses to notify an operator-configured endpoint (spec
// §6: "webhook.send({level, category, msg})").
package webhook

import (
	"time"

	"github.com/Comcast/proxygate/internal/log"
	"github.com/go-resty/resty/v2"
)

// Level mirrors the severity the reload controller reports at: Info
// for a successful restart-triggering diff, Warning for validation
// failures (spec §7; the exact level for validation failures is left
// to implementers by spec.md, pinned here by SPEC_FULL).
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notification is the payload sent to the configured webhook URL.
type Notification struct {
	Level    Level  `json:"level"`
	Category string `json:"category"`
	Msg      string `json:"msg"`
}

// Client posts Notifications to a configured URL. A zero-value URL
// disables delivery: Send becomes a no-op rather than an error, since
// an operator who hasn't configured a webhook shouldn't see failures
// logged for it.
type Client struct {
	url  string
	http *resty.Client
}

// New builds a Client targeting url (may be empty).
func New(url string) *Client {
	c := resty.New().SetTimeout(5 * time.Second)
	return &Client{url: url, http: c}
}

// Send posts n to the configured webhook URL. Delivery failures are
// logged, never propagated — a down notification endpoint must never
// affect reload or request handling.
func (c *Client) Send(n Notification) {
	if c.url == "" {
		return
	}
	resp, err := c.http.R().SetBody(n).Post(c.url)
	if err != nil {
		log.Warn("webhook delivery failed", log.Pairs{"error": err.Error(), "category": n.Category})
		return
	}
	if resp.IsError() {
		log.Warn("webhook endpoint rejected notification", log.Pairs{"status": resp.StatusCode(), "category": n.Category})
	}
}
