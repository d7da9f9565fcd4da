package sync

import (
	"context"
	"time"
)

// Feed tells the synchronizer when to look for remote changes. The
// merge logic does not care whether ticks come from a wall-clock timer
// or from a message broker; both feeds deliver the same signal.
type Feed interface {
	// Changes delivers sync triggers until ctx is cancelled.
	Changes(ctx context.Context) <-chan struct{}
}

// TickerFeed fires at a fixed interval. This is the default feed; the
// interval trades staleness against load and 6 seconds is the tuned
// household-scale default.
type TickerFeed struct {
	Interval time.Duration
}

// NewTickerFeed creates a feed firing every interval.
func NewTickerFeed(interval time.Duration) *TickerFeed {
	if interval <= 0 {
		interval = 6 * time.Second
	}
	return &TickerFeed{Interval: interval}
}

func (f *TickerFeed) Changes(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		ticker := time.NewTicker(f.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
