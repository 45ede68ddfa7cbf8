package network

import (
	"context"
	"time"
)

// Retry is a pause between attempts that doubles on each failure
// up to the max.
type Retry struct {
	t, max time.Duration
}

func NewRetry(min, max time.Duration) Retry { return Retry{t: min, max: max} }

// Fail waits for the current pause or until ctx is done.
func (r *Retry) Fail(ctx context.Context) error {
	timer := time.NewTimer(r.t)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.t *= 2; r.t > r.max {
		r.t = r.max
	}
	return nil
}

func (r *Retry) Time() time.Duration { return r.t }
