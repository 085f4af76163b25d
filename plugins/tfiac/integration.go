package tfiac

import (
	"context"

	"github.com/joshp123/gohome-tfiac/internal/entries"
)

// SetupEntry pins the entry's unique ID to its entry ID and forwards the
// entry to the climate platform.
func (p *Plugin) SetupEntry(ctx context.Context, host entries.Host, entry entries.Entry) (bool, error) {
	if entry.UniqueID != entry.EntryID {
		id := entry.EntryID
		updated, err := host.UpdateEntry(ctx, entry.EntryID, entries.Update{UniqueID: &id})
		if err != nil {
			return false, err
		}
		entry = updated
	}
	if err := host.ForwardEntrySetups(ctx, entry, platforms); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Plugin) UnloadEntry(ctx context.Context, host entries.Host, entry entries.Entry) (bool, error) {
	ok, err := host.UnloadPlatforms(ctx, entry, platforms)
	if ok {
		p.untrack(entry.EntryID)
	}
	return ok, err
}
