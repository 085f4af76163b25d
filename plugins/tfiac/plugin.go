package tfiac

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-tfiac/internal/config"
	"github.com/joshp123/gohome-tfiac/internal/core"
	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/rate"
)

// Domain is the integration domain of TFIAC config entries.
const Domain = "tfiac"

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

var platforms = []entries.Platform{entries.PlatformClimate}

// Plugin implements the GoHome plugin contract and owns TFIAC config
// entries.
type Plugin struct {
	newDevice DeviceFactory
	logger    *slog.Logger
	metrics   *MetricsCollector

	health        core.HealthStatus
	healthMessage string

	mu       sync.Mutex
	entities map[string]*Entity
}

var (
	_ core.Plugin              = (*Plugin)(nil)
	_ entries.Integration      = (*Plugin)(nil)
	_ entries.PlatformProvider = (*Plugin)(nil)
)

// NewPlugin constructs the TFIAC plugin from config. It reports false when
// the tfiac section is absent.
func NewPlugin(cfg *config.TFIACConfig, logger *slog.Logger) (*Plugin, bool) {
	if cfg == nil {
		return nil, false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("plugin", Domain)

	runtimeCfg, err := ConfigFromYAML(cfg)
	if err != nil {
		p := New(nil, logger)
		p.health = core.HealthError
		p.healthMessage = err.Error()
		return p, true
	}
	return New(runtimeCfg.ClientFactory(logger), logger), true
}

// New builds a plugin around an explicit device factory.
func New(newDevice DeviceFactory, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Plugin{
		newDevice: newDevice,
		logger:    logger,
		health:    core.HealthHealthy,
		entities:  make(map[string]*Entity),
	}
	p.metrics = NewMetricsCollector(p.liveEntities)
	return p
}

func (p *Plugin) ID() string {
	return Domain
}

func (p *Plugin) Domain() string {
	return Domain
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    Domain,
		DisplayName: "TFIAC Air Conditioner",
		Version:     "0.1.0",
		Services:    []string{"gohome.entries.v1.Entries", "gohome.climate.v1.Climate"},
		Platforms:   []string{string(entries.PlatformClimate)},
	}
}

func (p *Plugin) AgentsMD() string {
	return agentsMD
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "tfiac-overview", JSON: dashboardJSON}}
}

func (p *Plugin) Collectors() []prometheus.Collector {
	return append([]prometheus.Collector{p.metrics}, rate.MetricsCollectors()...)
}

// Health is degraded while any loaded unit is unreachable.
func (p *Plugin) Health() core.HealthStatus {
	if p.health != core.HealthHealthy {
		return p.health
	}
	total, up := p.reachable()
	if up < total {
		return core.HealthDegraded
	}
	return core.HealthHealthy
}

func (p *Plugin) HealthMessage() string {
	if p.healthMessage != "" {
		return p.healthMessage
	}
	total, up := p.reachable()
	return fmt.Sprintf("%d/%d units reachable", up, total)
}

func (p *Plugin) reachable() (total, up int) {
	for _, e := range p.liveEntities() {
		total++
		if e.Available() {
			up++
		}
	}
	return total, up
}

func (p *Plugin) track(e *Entity) {
	p.mu.Lock()
	p.entities[e.UniqueID()] = e
	p.mu.Unlock()
}

func (p *Plugin) untrack(entryID string) {
	p.mu.Lock()
	delete(p.entities, entryID)
	p.mu.Unlock()
}

func (p *Plugin) liveEntities() []*Entity {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Entity, 0, len(p.entities))
	for _, e := range p.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID() < out[j].UniqueID() })
	return out
}

func (p *Plugin) device(host string) (Device, error) {
	if p.newDevice == nil {
		return nil, fmt.Errorf("tfiac plugin not configured: %s", p.healthMessage)
	}
	return p.newDevice(host)
}
