package stream

import (
	"context"
	"time"
)

// slidingWindowLimiter allows at most limit sends in any rolling window.
// Timestamps are recorded after a send completes, so a slow write can not
// squeeze an extra message into a window. Owned by the outbound loop.
type slidingWindowLimiter struct {
	limit  int
	window time.Duration
	sent   []time.Time
}

func newSlidingWindowLimiter(limit int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{
		limit:  limit,
		window: window,
		sent:   make([]time.Time, 0, limit),
	}
}

// Wait blocks until another send fits into the window.
func (l *slidingWindowLimiter) Wait(ctx context.Context) error {
	if l.limit <= 0 {
		return nil
	}

	for {
		now := time.Now()
		l.evict(now)

		if len(l.sent) < l.limit {
			return nil
		}

		timer := time.NewTimer(l.sent[0].Add(l.window).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Record marks a completed send.
func (l *slidingWindowLimiter) Record(at time.Time) {
	if l.limit <= 0 {
		return
	}

	l.sent = append(l.sent, at)
}

func (l *slidingWindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(l.sent) && !l.sent[i].After(cutoff) {
		i++
	}

	if i > 0 {
		l.sent = append(l.sent[:0], l.sent[i:]...)
	}
}
