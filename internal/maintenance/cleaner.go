// Package maintenance runs periodic housekeeping against the event store.
package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/adas-events/internal/clock"
	"github.com/iliyamo/adas-events/internal/logging"
)

// Store deletes events, cascading to their tiers, attendees, messages and
// polls.
type Store interface {
	DeleteEventsEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner removes events whose end time is older than the retention
// window.
type Cleaner struct {
	store     Store
	clock     clock.Clock
	retention time.Duration
	logger    *zap.Logger
}

func NewCleaner(store Store, clk clock.Clock, retention time.Duration, logger *zap.Logger) *Cleaner {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	return &Cleaner{store: store, clock: clk, retention: retention, logger: logging.OrNop(logger).Named("cleaner")}
}

// Sweep runs one pass and returns the number of events deleted.
func (c *Cleaner) Sweep(ctx context.Context) (int64, error) {
	cutoff := c.clock.Now().Add(-c.retention)
	n, err := c.store.DeleteEventsEndedBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	if n > 0 {
		c.logger.Info("expired events deleted", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps once immediately and then every interval until ctx ends.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	_, _ = c.Sweep(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = c.Sweep(ctx)
		}
	}
}
