package tfiac

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-tfiac/internal/config"
	"github.com/joshp123/gohome-tfiac/internal/core"
	"github.com/joshp123/gohome-tfiac/internal/entries"
)

func TestNewPluginFromConfig(t *testing.T) {
	_, ok := NewPlugin(nil, nil)
	assert.False(t, ok)

	p, ok := NewPlugin(&config.TFIACConfig{Port: 7777, RequestTimeout: time.Second}, nil)
	require.True(t, ok)
	assert.Equal(t, core.HealthHealthy, p.Health())
	assert.Equal(t, "0/0 units reachable", p.HealthMessage())
	require.NoError(t, core.ValidatePlugins([]core.Plugin{p}))

	bad, ok := NewPlugin(&config.TFIACConfig{Port: 70000}, nil)
	require.True(t, ok)
	assert.Equal(t, core.HealthError, bad.Health())
	assert.Contains(t, bad.HealthMessage(), "out of range")

	_, err := bad.device("10.0.0.5")
	assert.Error(t, err)
}

func TestPluginManifest(t *testing.T) {
	p := New(nil, nil)
	m := p.Manifest()
	assert.Equal(t, Domain, m.PluginID)
	assert.Equal(t, Domain, p.ID())
	assert.NotEmpty(t, p.AgentsMD())
	require.Len(t, p.Dashboards(), 1)
	assert.Contains(t, string(p.Dashboards()[0].JSON), "gohome_tfiac_current_temperature_fahrenheit")
}

func TestSetupEntryPinsUniqueID(t *testing.T) {
	h := newHarness(t)
	h.addDevice("10.0.0.5", "A")

	entry := h.addEntry(t, map[string]string{entries.KeyHost: "10.0.0.5"}, nil)
	assert.Equal(t, entry.EntryID, entry.UniqueID)
	assert.Len(t, h.registry.Entities(entry.EntryID), 1)
	assert.Len(t, h.plugin.liveEntities(), 1)

	ok, err := h.entries.Unload(testContext(t), entry.EntryID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, h.registry.Entities(entry.EntryID))
	assert.Empty(t, h.plugin.liveEntities())
}

func TestSetupPlatformPrefersOptionsHost(t *testing.T) {
	h := newHarness(t)
	h.addDevice("10.0.0.5", "Data Host")
	h.addDevice("10.0.0.6", "Options Host")

	entry := h.addEntry(t,
		map[string]string{entries.KeyHost: "10.0.0.5"},
		map[string]string{entries.KeyHost: "10.0.0.6"},
	)

	state, err := h.registry.State(entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, "Options Host", state.Name)
}

func TestSetupPlatformToleratesUnreachableUnit(t *testing.T) {
	h := newHarness(t)

	entry := h.addEntry(t, map[string]string{entries.KeyHost: "10.0.0.42"}, nil)
	assert.Equal(t, entries.StateLoaded, entry.State)

	state, err := h.registry.Refresh(testContext(t), entry.EntryID)
	require.NoError(t, err)
	assert.False(t, state.Available)
	assert.Equal(t, core.HealthDegraded, h.plugin.Health())
	assert.Equal(t, "0/1 units reachable", h.plugin.HealthMessage())
}

func TestMetricsCollector(t *testing.T) {
	h := newHarness(t)
	d := h.addDevice("10.0.0.5", "A")
	target := 70.0
	d.status.TargetTemp = &target
	entry := h.addEntry(t, map[string]string{entries.KeyHost: "10.0.0.5"}, nil)

	_, err := h.registry.Refresh(testContext(t), entry.EntryID)
	require.NoError(t, err)

	collector := h.plugin.Collectors()[0]
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	assert.Equal(t, 1, testutil.CollectAndCount(collector, "gohome_tfiac_available"))
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "gohome_tfiac_target_temperature_fahrenheit"))
	assert.Equal(t, 0, testutil.CollectAndCount(collector, "gohome_tfiac_current_temperature_fahrenheit"))
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "gohome_tfiac_hvac_mode"))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.plugin.metrics.polls.WithLabelValues(entry.EntryID)))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.plugin.metrics.pollErrors.WithLabelValues(entry.EntryID)))
}

func TestMetricsPowerFollowsUnitFlag(t *testing.T) {
	h := newHarness(t)
	d := h.addDevice("10.0.0.5", "A")
	d.status.Operation = "turbo"
	entry := h.addEntry(t, map[string]string{entries.KeyHost: "10.0.0.5"}, nil)

	_, err := h.registry.Refresh(testContext(t), entry.EntryID)
	require.NoError(t, err)

	collector := h.plugin.Collectors()[0]
	assert.Equal(t, 0, testutil.CollectAndCount(collector, "gohome_tfiac_hvac_mode"))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.plugin.metrics.power.WithLabelValues(entry.EntryID, "A")))
}
