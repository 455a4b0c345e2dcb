package topology

import (
	"context"
	"time"
)

// Scanner is the single long-running task that periodically evicts
// hosts whose heartbeat has lapsed. It is started lazily by the first
// Engine.Query call and runs for the process lifetime; it is only ever
// stopped via Engine.Close, used by tests and graceful shutdown.
type Scanner struct {
	engine   *Engine
	interval time.Duration
}

func newScanner(e *Engine, interval time.Duration) *Scanner {
	return &Scanner{engine: e, interval: interval}
}

// run waits interval between passes, bounding eviction latency to at
// most the expiry threshold plus interval (one for the heartbeat to
// lapse, one for the scanner to notice; 2*expiry with the default
// interval) while keeping scan frequency low.
func (s *Scanner) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.sweep()
		}
	}
}
