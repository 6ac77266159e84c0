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

package cache

import "sync"

const predictorSlots = 128

// Predictor tracks, per key, whether a request was recently found
// cacheable. A 128-slot recency table means a miss on a key last
// recorded as not cacheable can skip the lock/fill path entirely
// (spec §4.D: "so the first miss on a non-cacheable key can be handled
// without locking").
type Predictor struct {
	mu    sync.Mutex
	slots [predictorSlots]predictorSlot
}

type predictorSlot struct {
	key        string
	cacheable  bool
	occupied   bool
}

// NewPredictor returns an empty Predictor.
func NewPredictor() *Predictor {
	return &Predictor{}
}

func (p *Predictor) slotFor(key string) int {
	return int(fnv32(key) % uint32(predictorSlots))
}

// Likely reports whether key is predicted cacheable. An unseen key
// (slot unoccupied, or occupied by a different key) predicts true —
// predictions only suppress locking for keys with a proven history of
// not being cacheable.
func (p *Predictor) Likely(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.slots[p.slotFor(key)]
	if !s.occupied || s.key != key {
		return true
	}
	return s.cacheable
}

// Record stores the most recent cacheability outcome for key,
// overwriting whatever previously occupied its slot (the table is
// fixed-size and approximate by construction).
func (p *Predictor) Record(key string, cacheable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.slots[p.slotFor(key)]
	s.key = key
	s.cacheable = cacheable
	s.occupied = true
}
