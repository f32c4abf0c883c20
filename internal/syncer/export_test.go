package syncer

import (
	"context"
	"time"
)

// SetClock overrides the orchestrator's time source for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// SetSleep overrides the retry backoff sleep for tests.
func (o *Orchestrator) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	o.sleep = sleep
}
