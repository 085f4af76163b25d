package tfiac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
)

var errUnreachable = errors.New("unreachable")

// fakeDevice records setter calls and serves a canned status.
type fakeDevice struct {
	mu        sync.Mutex
	host      string
	name      string
	status    Status
	updateErr error
	updates   int
	calls     []string
}

func (d *fakeDevice) Host() string { return d.host }

func (d *fakeDevice) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

func (d *fakeDevice) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status.clone()
}

func (d *fakeDevice) Update(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates++
	return d.updateErr
}

func (d *fakeDevice) record(call string, apply func(*Status)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	apply(&d.status)
	return nil
}

func (d *fakeDevice) SetTargetTemperature(_ context.Context, temp float64) error {
	return d.record(fmt.Sprintf("target_temp=%v", temp), func(s *Status) { s.TargetTemp = &temp })
}

func (d *fakeDevice) SetOperationMode(_ context.Context, mode string) error {
	return d.record("operation="+mode, func(s *Status) {
		s.Operation = mode
		s.Power = PowerOn
	})
}

func (d *fakeDevice) SetFanMode(_ context.Context, mode string) error {
	return d.record("fan_mode="+mode, func(s *Status) { s.FanMode = mode })
}

func (d *fakeDevice) SetSwingMode(_ context.Context, mode string) error {
	return d.record("swing_mode="+mode, func(s *Status) { s.SwingMode = mode })
}

func (d *fakeDevice) SetPower(_ context.Context, power string) error {
	return d.record("is_on="+power, func(s *Status) { s.Power = power })
}

func (d *fakeDevice) setUpdateErr(err error) {
	d.mu.Lock()
	d.updateErr = err
	d.mu.Unlock()
}

func (d *fakeDevice) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// harness wires the plugin into real entry, flow, and climate managers.
type harness struct {
	plugin   *Plugin
	entries  *entries.Manager
	flows    *flow.Manager
	registry *climate.Registry

	mu      sync.Mutex
	devices map[string]*fakeDevice
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{devices: make(map[string]*fakeDevice)}
	h.plugin = New(h.device, logger)
	h.registry = climate.NewRegistry(logger)
	h.entries = entries.NewManager(entries.NewMemoryStore(), h.registry, entries.WithLogger(logger))
	require.NoError(t, h.entries.Register(h.plugin))
	h.flows = flow.NewManager(h.entries, logger)
	require.NoError(t, h.flows.Register(h.plugin))
	return h
}

// addDevice makes host reachable with the given device name.
func (h *harness) addDevice(host, name string) *fakeDevice {
	d := &fakeDevice{
		host: host,
		name: name,
		status: Status{
			Operation: OperationCool,
			FanMode:   "Auto",
			SwingMode: SwingOff,
			Power:     PowerOn,
		},
	}
	h.mu.Lock()
	h.devices[host] = d
	h.mu.Unlock()
	return d
}

func (h *harness) device(host string) (Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.devices[host]; ok {
		return d, nil
	}
	return &fakeDevice{host: host, updateErr: errUnreachable}, nil
}

func (h *harness) addEntry(t *testing.T, data, options map[string]string) entries.Entry {
	t.Helper()
	entry, err := h.entries.Add(testContext(t), entries.Entry{Domain: Domain, Title: data[entries.KeyHost], Data: data, Options: options})
	require.NoError(t, err)
	return entry
}
