package tfiac

import (
	"context"
	"fmt"

	"github.com/joshp123/gohome-tfiac/internal/entries"
)

// SetupPlatform builds the entry's single climate entity. An unreachable
// unit is still added; polling marks it unavailable.
func (p *Plugin) SetupPlatform(ctx context.Context, platform entries.Platform, entry entries.Entry, add entries.AddEntities) error {
	if platform != entries.PlatformClimate {
		return fmt.Errorf("%w: %s", entries.ErrUnknownPlatform, platform)
	}

	host := entryHost(entry)
	device, err := p.device(host)
	if err != nil {
		return err
	}
	if err := device.Update(ctx); err != nil {
		p.logger.Warn("initial update failed, proceeding anyway", "host", host, "entry_id", entry.EntryID, "error", err)
	}

	entity := NewEntity(device, entry.EntryID, entry.Options[entries.KeyFriendlyName], p.logger)
	entity.onPoll = p.metrics.observePoll
	if err := add(entity); err != nil {
		return err
	}
	p.track(entity)
	return nil
}

// entryHost prefers the host from options over the one in data.
func entryHost(entry entries.Entry) string {
	if host := entry.Options[entries.KeyHost]; host != "" {
		return host
	}
	return entry.Data[entries.KeyHost]
}
