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

// Package reload implements the auto-reload controller (spec §4.F): a
// periodic task that diffs the desired configuration against the
// running snapshot and decides between an in-place hot-reload and a
// full process restart.
package reload

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/log"
	"github.com/Comcast/proxygate/internal/metrics"
	"github.com/Comcast/proxygate/internal/webhook"
	"github.com/fsnotify/fsnotify"
)

const subPeriodCeiling = 30 * time.Second

// Dispatcher applies the hot-reloadable sections of a new snapshot.
// Each method returns an error on failure; the controller logs it and
// continues dispatching the remaining sections regardless (spec §4.F
// step 4: "on error, log and continue").
type Dispatcher interface {
	ReloadUpstreams(desired *config.Snapshot) error
	ReloadLocations(desired *config.Snapshot) error
	ReloadServerLocations(desired *config.Snapshot) error
}

// Controller owns the current configuration snapshot and the ticking
// reload logic. The zero value is not usable; construct with New.
type Controller struct {
	configPath string
	strict     bool

	subPeriod time.Duration
	ratio     uint32
	counter   uint32 // atomic

	current    atomic.Pointer[config.Snapshot]
	dispatcher Dispatcher
	webhook    *webhook.Client
	restart    func()

	watcher     *fsnotify.Watcher
	watchCh     chan struct{}
}

// New constructs a Controller. period is the operator-configured P;
// initial is the already-loaded, already-validated starting snapshot.
func New(configPath string, strict bool, initial *config.Snapshot, period time.Duration, dispatcher Dispatcher, wh *webhook.Client, restart func()) *Controller {
	c := &Controller{
		configPath: configPath,
		strict:     strict,
		subPeriod:  period,
		dispatcher: dispatcher,
		webhook:    wh,
		restart:    restart,
		watchCh:    make(chan struct{}, 1),
	}
	c.current.Store(initial)
	if period > subPeriodCeiling {
		c.ratio = uint32(period / subPeriodCeiling)
		c.subPeriod = subPeriodCeiling
	} else {
		c.ratio = 1
		c.subPeriod = period
	}
	return c
}

// Current returns the actively published snapshot.
func (c *Controller) Current() *config.Snapshot {
	return c.current.Load()
}

// Run ticks every sub-period until ctx is cancelled. It also watches
// the config file for write events and runs an extra hot-reload-only
// pass between ticks (SPEC_FULL's additive supplement to §4.F: a
// config-file watcher can never promote itself to a restart-eligible
// tick, it only lets hot-reloadable sections land sooner).
func (c *Controller) Run(ctx context.Context) {
	c.startWatcher()
	defer c.stopWatcher()

	ticker := time.NewTicker(c.subPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		case <-c.watchCh:
			c.reloadOnce(true)
		}
	}
}

func (c *Controller) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("config watcher unavailable", log.Pairs{"error": err.Error()})
		return
	}
	if err := w.Add(c.configPath); err != nil {
		log.Warn("config watcher add failed", log.Pairs{"error": err.Error(), "path": c.configPath})
		_ = w.Close()
		return
	}
	c.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					select {
					case c.watchCh <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", log.Pairs{"error": err.Error()})
			}
		}
	}()
}

func (c *Controller) stopWatcher() {
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
}

// classify advances the monotonic counter and reports whether this
// tick is restart-eligible (spec §4.F: "c > 0 ∧ R > 1 ∧ c mod R = 0").
// The counter tolerates uint32 wraparound, per the data model
// invariant ("monotonically non-decreasing until wraparound, which is
// tolerated") — wraparound just restarts the modulo cycle.
func (c *Controller) classify() (restartEligible bool) {
	count := atomic.AddUint32(&c.counter, 1) - 1
	return count > 0 && c.ratio > 1 && count%c.ratio == 0
}

func (c *Controller) tick() {
	restartEligible := c.classify()
	restart, diffDetails := c.reloadOnce(!restartEligible)
	if restart {
		c.webhook.Send(webhook.Notification{
			Level:    webhook.LevelInfo,
			Category: "diff_config",
			Msg:      strings.Join(diffDetails, "\n"),
		})
		c.restart()
	}
}

// reloadOnce runs one pass of spec §4.F's steps 1–6. It returns
// (true, diffDetails) only on a restart-eligible tick whose diff
// required a restart; every other outcome returns (false, nil).
func (c *Controller) reloadOnce(hotReloadOnly bool) (bool, []string) {
	desired, err := config.Load(c.configPath, c.strict)
	if err != nil {
		log.Error("reload: config validation failed, keeping current snapshot", log.Pairs{"error": err.Error()})
		c.webhook.Send(webhook.Notification{
			Level:    webhook.LevelWarning,
			Category: "config_invalid",
			Msg:      err.Error(),
		})
		metrics.ReloadsTotal.WithLabelValues("invalid_config").Inc()
		return false, nil
	}

	current := c.current.Load()
	diff := current.Diff(desired)
	if diff.Empty() {
		metrics.ReloadsTotal.WithLabelValues("noop").Inc()
		return false, nil
	}

	needsRestart := false
	if diff.Changed[config.SectionUpstreams] {
		if err := c.dispatcher.ReloadUpstreams(desired); err != nil {
			log.Error("reload upstreams failed", log.Pairs{"error": err.Error()})
		} else {
			log.Info("reload upstreams succeeded", nil)
		}
	}
	if diff.Changed[config.SectionLocations] {
		if err := c.dispatcher.ReloadLocations(desired); err != nil {
			log.Error("reload locations failed", log.Pairs{"error": err.Error()})
		} else {
			log.Info("reload locations succeeded", nil)
		}
	}
	if len(diff.ServerLocationsChanged) > 0 {
		if err := c.dispatcher.ReloadServerLocations(desired); err != nil {
			log.Error("reload server locations failed", log.Pairs{"error": err.Error()})
		} else {
			log.Info("reload server locations succeeded", nil)
		}
	}
	for section := range diff.Changed {
		switch section {
		case config.SectionUpstreams, config.SectionLocations:
			// hot-reloadable, handled above.
		default:
			needsRestart = true
		}
	}

	if hotReloadOnly {
		if !needsRestart {
			c.current.Store(desired)
			metrics.LastReloadTimestamp.SetToCurrentTime()
			metrics.ReloadsTotal.WithLabelValues("hot_reload").Inc()
		}
		return false, nil
	}

	c.current.Store(desired)
	metrics.LastReloadTimestamp.SetToCurrentTime()
	if needsRestart {
		metrics.ReloadsTotal.WithLabelValues("restart").Inc()
		return true, diff.Details
	}
	metrics.ReloadsTotal.WithLabelValues("hot_reload").Inc()
	return false, nil
}
