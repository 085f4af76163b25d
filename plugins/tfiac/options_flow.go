package tfiac

import (
	"context"
	"fmt"
	"maps"

	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
)

// optionsFlow edits the host and friendly name of a loaded entry. It does
// not probe the new host.
type optionsFlow struct {
	host  entries.Host
	entry entries.Entry
}

func (f *optionsFlow) Step(ctx context.Context, stepID string, input map[string]string) (flow.Result, error) {
	if stepID != "init" {
		return flow.Result{}, fmt.Errorf("unknown step %q", stepID)
	}
	if input == nil {
		return flow.Form("init", f.schema(), nil), nil
	}

	data := maps.Clone(f.entry.Data)
	if data == nil {
		data = make(map[string]string)
	}
	data[entries.KeyHost] = input[entries.KeyHost]
	options := map[string]string{entries.KeyFriendlyName: input[entries.KeyFriendlyName]}

	if _, err := f.host.UpdateEntry(ctx, f.entry.EntryID, entries.Update{Data: data, Options: options}); err != nil {
		return flow.Result{}, err
	}
	if err := f.host.Reload(ctx, f.entry.EntryID); err != nil {
		return flow.Result{}, err
	}
	return flow.CreateEntry("", maps.Clone(input)), nil
}

func (f *optionsFlow) schema() []flow.Field {
	host := f.entry.Options[entries.KeyHost]
	if host == "" {
		host = f.entry.Data[entries.KeyHost]
	}
	return []flow.Field{
		{Key: entries.KeyHost, Required: true, Default: host},
		{Key: entries.KeyFriendlyName, Default: f.entry.Options[entries.KeyFriendlyName]},
	}
}
