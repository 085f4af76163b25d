package climate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultScanInterval = 60 * time.Second
	defaultPollLimit    = 8
)

// Poller refreshes every polled entity on a fixed interval.
type Poller struct {
	registry *Registry
	interval time.Duration
	limit    int
	logger   *slog.Logger
}

func NewPoller(registry *Registry, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{registry: registry, interval: interval, limit: defaultPollLimit, logger: logger}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce refreshes all polled entities concurrently and waits for them.
// Each refresh is bounded by the scan interval.
func (p *Poller) PollOnce(ctx context.Context) {
	ids := p.registry.Polled()
	if len(ids) == 0 {
		return
	}

	start := time.Now()
	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.limit)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			refreshCtx, cancel := context.WithTimeout(groupCtx, p.interval)
			defer cancel()
			// An entity removed since Polled() was taken is not an error.
			if _, err := p.registry.Refresh(refreshCtx, id); err != nil {
				p.logger.Debug("poll skipped", "entity", id, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	p.logger.Debug("poll complete", "entities", len(ids), "took", time.Since(start))
}
