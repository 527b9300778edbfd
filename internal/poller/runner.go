// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls once immediately, then on every tick, and emits each PollResult on out.
// One goroutine per unit. No overlap. No retries.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if !p.emit(ctx, out) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// emit reports false once ctx is done.
func (p *Poller) emit(ctx context.Context, out chan<- PollResult) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- p.PollOnce():
		return true
	case <-ctx.Done():
		return false
	}
}
