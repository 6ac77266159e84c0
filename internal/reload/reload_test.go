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

package reload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/proxygate/internal/config"
	"github.com/Comcast/proxygate/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	upstreams, locations, serverLocations int
}

func (f *fakeDispatcher) ReloadUpstreams(*config.Snapshot) error        { f.upstreams++; return nil }
func (f *fakeDispatcher) ReloadLocations(*config.Snapshot) error        { f.locations++; return nil }
func (f *fakeDispatcher) ReloadServerLocations(*config.Snapshot) error  { f.serverLocations++; return nil }

const baseConfigTOML = `
[basic]
log_level = "info"

[upstreams.a]
addrs = ["127.0.0.1:9001"]

[locations.root]
path = "/"
upstream = "a"

[servers.main]
listen = ":8080"
locations = ["root"]
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestClassifyFirstTickIsHotReloadOnly(t *testing.T) {
	c := &Controller{ratio: 3}
	assert.False(t, c.classify()) // count==0
}

func TestClassifyRestartEligibleEveryRatioTicks(t *testing.T) {
	c := &Controller{ratio: 3}
	results := make([]bool, 7)
	for i := range results {
		results[i] = c.classify()
	}
	// counts observed: 0,1,2,3,4,5,6 -> restart-eligible at 3 and 6
	assert.Equal(t, []bool{false, false, false, true, false, false, true}, results)
}

func TestClassifyRatioOneNeverRestartEligibleViaHotOnlyPath(t *testing.T) {
	c := &Controller{ratio: 1}
	for i := 0; i < 5; i++ {
		assert.False(t, c.classify())
	}
}

func TestWebhookClientNoopWithoutURL(t *testing.T) {
	wh := webhook.New("")
	assert.NotPanics(t, func() {
		wh.Send(webhook.Notification{Level: webhook.LevelInfo, Category: "x", Msg: "y"})
	})
}

func TestSubPeriodClampedTo30s(t *testing.T) {
	c := New("/tmp/does-not-matter.toml", false, nil, 5*time.Minute, nil, webhook.New(""), func() {})
	assert.Equal(t, 30*time.Second, c.subPeriod)
	assert.Equal(t, uint32(10), c.ratio)
}

func TestSubPeriodBelowCeilingUsesPeriodDirectly(t *testing.T) {
	c := New("/tmp/does-not-matter.toml", false, nil, 5*time.Second, nil, webhook.New(""), func() {})
	assert.Equal(t, 5*time.Second, c.subPeriod)
	assert.Equal(t, uint32(1), c.ratio)
}

// hotReloadOnlyInitial loads the same config the dispatcher will diff
// against, then empties only the hot-reloadable sections, so the
// resulting diff touches upstreams/locations/server-locations and
// nothing else.
func hotReloadOnlyInitial(t *testing.T, path string) *config.Snapshot {
	t.Helper()
	initial, err := config.Load(path, false)
	require.NoError(t, err)
	initial.Upstreams = map[string]*config.UpstreamConfig{}
	initial.Locations = map[string]*config.LocationConfig{}
	for _, srv := range initial.Servers {
		srv.Locations = nil
	}
	return initial
}

func TestReloadOnceHotReloadOnlyDispatchesHotSectionsAndPublishes(t *testing.T) {
	path := writeConfig(t, t.TempDir(), baseConfigTOML)
	dispatcher := &fakeDispatcher{}
	c := New(path, false, hotReloadOnlyInitial(t, path), time.Minute, dispatcher, webhook.New(""), func() { t.Fatal("restart must not be called") })

	restart, details := c.reloadOnce(true)
	assert.False(t, restart)
	assert.Nil(t, details)
	assert.Equal(t, 1, dispatcher.upstreams)
	assert.Equal(t, 1, dispatcher.locations)
	assert.Equal(t, 1, dispatcher.serverLocations)

	published := c.Current()
	require.NotNil(t, published)
	assert.Contains(t, published.Upstreams, "a")
}

func TestReloadOnceRestartEligibleWithBasicChangeReturnsTrue(t *testing.T) {
	path := writeConfig(t, t.TempDir(), baseConfigTOML)
	dispatcher := &fakeDispatcher{}
	c := New(path, false, config.New(), time.Minute, dispatcher, webhook.New(""), func() {})

	// basic config differs from the zero-value initial snapshot, so the
	// diff includes SectionBasic, which is not hot-reloadable.
	restart, details := c.reloadOnce(false)
	assert.True(t, restart)
	assert.NotEmpty(t, details)
	require.NotNil(t, c.Current())
	assert.Contains(t, c.Current().Upstreams, "a")
}

func TestReloadOnceHotReloadOnlyWithRestartSectionSkipsPublish(t *testing.T) {
	path := writeConfig(t, t.TempDir(), baseConfigTOML)
	dispatcher := &fakeDispatcher{}
	zero := config.New()
	c := New(path, false, zero, time.Minute, dispatcher, webhook.New(""), func() {})

	restart, details := c.reloadOnce(true)
	assert.False(t, restart)
	assert.Nil(t, details)
	// basic changed but hotReloadOnly means the snapshot is NOT published.
	assert.Equal(t, zero.Basic, c.Current().Basic)
}

func TestReloadOnceNoopWhenNothingChanged(t *testing.T) {
	path := writeConfig(t, t.TempDir(), baseConfigTOML)
	initial, err := config.Load(path, false)
	require.NoError(t, err)
	dispatcher := &fakeDispatcher{}
	c := New(path, false, initial, time.Minute, dispatcher, webhook.New(""), func() { t.Fatal("restart must not be called") })

	restart, details := c.reloadOnce(false)
	assert.False(t, restart)
	assert.Nil(t, details)
	assert.Zero(t, dispatcher.upstreams)
	assert.Zero(t, dispatcher.locations)
	assert.Zero(t, dispatcher.serverLocations)
}

func TestReloadOnceInvalidConfigKeepsCurrentSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, baseConfigTOML)
	initial, err := config.Load(path, false)
	require.NoError(t, err)
	dispatcher := &fakeDispatcher{}
	c := New(path, false, initial, time.Minute, dispatcher, webhook.New(""), func() { t.Fatal("restart must not be called") })

	require.NoError(t, os.WriteFile(path, []byte("not valid toml [["), 0o644))

	restart, details := c.reloadOnce(false)
	assert.False(t, restart)
	assert.Nil(t, details)
	assert.Same(t, initial, c.Current())
}
