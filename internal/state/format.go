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

package state

import (
	"strconv"
	"time"
)

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatInt(i int) string { return strconv.Itoa(i) }

func formatInt64(i int64) string { return strconv.FormatInt(i, 10) }

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', 3, 64)
}

// HumanSize renders a byte count in SI-style short units (K, M, G),
// matching the `_human` suffix variants of size tokens.
func HumanSize(n int64) string {
	const unit = 1000
	if n < unit {
		return strconv.FormatInt(n, 10) + "B"
	}
	div, exp := int64(unit), 0
	for n1 := n / unit; n1 >= unit; n1 /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	val := float64(n) / float64(div)
	return strconv.FormatFloat(val, 'f', 1, 64) + string(units[exp]) + "B"
}

// HumanDuration renders a duration in SI-style short units for the
// `_human` latency/timing token variants.
func HumanDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return strconv.FormatInt(d.Nanoseconds(), 10) + "ns"
	case d < time.Millisecond:
		return strconv.FormatFloat(float64(d.Nanoseconds())/1000, 'f', 1, 64) + "us"
	case d < time.Second:
		return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 1, 64) + "ms"
	default:
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
}
