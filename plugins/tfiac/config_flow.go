package tfiac

import (
	"context"
	"fmt"
	"maps"

	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
)

var _ flow.Factory = (*Plugin)(nil)

// NewFlow returns the setup, reconfigure, or options flow handler.
func (p *Plugin) NewFlow(_ context.Context, host entries.Host, source flow.Source, entry *entries.Entry) (flow.Handler, error) {
	switch source {
	case flow.SourceUser:
		return &configFlow{plugin: p, host: host}, nil
	case flow.SourceReconfigure:
		if entry == nil {
			return nil, fmt.Errorf("reconfigure flow needs an entry")
		}
		return &configFlow{plugin: p, host: host, entry: entry}, nil
	case flow.SourceOptions:
		if entry == nil {
			return nil, fmt.Errorf("options flow needs an entry")
		}
		return &optionsFlow{host: host, entry: *entry}, nil
	default:
		return nil, fmt.Errorf("tfiac has no %q flow", source)
	}
}

// configFlow handles initial setup and, when bound to an entry,
// reconfiguration of the unit's host.
type configFlow struct {
	plugin *Plugin
	host   entries.Host
	entry  *entries.Entry
}

func (f *configFlow) Step(ctx context.Context, stepID string, input map[string]string) (flow.Result, error) {
	switch stepID {
	case string(flow.SourceUser):
		return f.stepUser(ctx, input)
	case string(flow.SourceReconfigure):
		return f.stepReconfigure(ctx, input)
	default:
		return flow.Result{}, fmt.Errorf("unknown step %q", stepID)
	}
}

func (f *configFlow) stepUser(ctx context.Context, input map[string]string) (flow.Result, error) {
	schema := []flow.Field{{Key: entries.KeyHost, Required: true}}
	if input == nil {
		return flow.Form("user", schema, nil), nil
	}

	host := input[entries.KeyHost]
	name, err := f.probe(ctx, host)
	if err != nil {
		return flow.Form("user", schema, map[string]string{flow.ErrorBase: flow.ErrorCannotConnect}), nil
	}
	if f.hostConfigured(host, "") {
		return flow.Abort(flow.ReasonAlreadyConfigured), nil
	}
	return flow.CreateEntry(titleFor(name, host), maps.Clone(input)), nil
}

func (f *configFlow) stepReconfigure(ctx context.Context, input map[string]string) (flow.Result, error) {
	schema := []flow.Field{{Key: entries.KeyHost, Required: true, Default: f.entry.Data[entries.KeyHost]}}
	if input == nil {
		return flow.Form("reconfigure", schema, nil), nil
	}

	host := input[entries.KeyHost]
	name, err := f.probe(ctx, host)
	if err != nil {
		return flow.Form("reconfigure", schema, map[string]string{flow.ErrorBase: flow.ErrorCannotConnect}), nil
	}
	if f.hostConfigured(host, f.entry.EntryID) {
		return flow.Abort(flow.ReasonAlreadyConfigured), nil
	}

	title := titleFor(name, host)
	if _, err := f.host.UpdateEntry(ctx, f.entry.EntryID, entries.Update{Title: &title, Data: maps.Clone(input)}); err != nil {
		return flow.Result{}, err
	}
	if err := f.host.Reload(ctx, f.entry.EntryID); err != nil {
		return flow.Result{}, err
	}
	return flow.Abort(flow.ReasonReconfigureSuccessful), nil
}

// probe connects to host once and returns the device name.
func (f *configFlow) probe(ctx context.Context, host string) (string, error) {
	device, err := f.plugin.device(host)
	if err == nil {
		err = device.Update(ctx)
	}
	if err != nil {
		f.plugin.logger.Debug("tfiac probe failed", "host", host, "error", err)
		return "", err
	}
	return device.Name(), nil
}

// hostConfigured reports whether another entry already uses host in its
// data or options.
func (f *configFlow) hostConfigured(host, excludeEntryID string) bool {
	for _, e := range f.host.Entries(Domain) {
		if excludeEntryID != "" && e.EntryID == excludeEntryID {
			continue
		}
		if e.Data[entries.KeyHost] == host || e.Options[entries.KeyHost] == host {
			return true
		}
	}
	return false
}

func titleFor(name, host string) string {
	if name != "" {
		return name
	}
	return host
}
