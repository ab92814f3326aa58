package inference

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Throttle admits at most Limit call starts in any rolling Window and keeps
// consecutive starts at least Window/Limit apart. Waiters are served one at a
// time in arrival order, so two callers never reserve the same slot.
type Throttle struct {
	limit   int
	window  time.Duration
	spacing time.Duration
	clock   Clock

	// chain holds a single token; whoever owns it is the only caller
	// computing and sleeping toward the next slot.
	chain chan struct{}

	mu     sync.Mutex
	starts []time.Time
}

// NewThrottle creates a limiter. A nil clock means SystemClock.
func NewThrottle(limit int, window time.Duration, clock Clock) (*Throttle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("throttle limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("throttle window must be positive, got %v", window)
	}
	if clock == nil {
		clock = SystemClock{}
	}

	t := &Throttle{
		limit:   limit,
		window:  window,
		spacing: window / time.Duration(limit),
		clock:   clock,
		chain:   make(chan struct{}, 1),
	}
	t.chain <- struct{}{}
	return t, nil
}

// Spacing returns the minimum gap between two call starts.
func (t *Throttle) Spacing() time.Duration { return t.spacing }

// Wait blocks until a call may start and records the start. It returns how
// long the caller waited.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	began := t.clock.Now()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.chain:
	}
	defer func() { t.chain <- struct{}{} }()

	for {
		now := t.clock.Now()
		next := t.nextSlot(now)
		if !next.After(now) {
			t.record(now)
			return now.Sub(began), nil
		}
		if err := t.clock.Sleep(ctx, next.Sub(now)); err != nil {
			return t.clock.Now().Sub(began), err
		}
	}
}

// Starts returns a copy of the recorded starts still inside the window.
func (t *Throttle) Starts() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]time.Time, len(t.starts))
	copy(out, t.starts)
	return out
}

func (t *Throttle) nextSlot(now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.window)
	kept := t.starts[:0]
	for _, s := range t.starts {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	t.starts = kept

	next := now
	if n := len(t.starts); n > 0 {
		if spaced := t.starts[n-1].Add(t.spacing); spaced.After(next) {
			next = spaced
		}
	}
	if len(t.starts) >= t.limit {
		// The oldest start must leave the window first.
		if freed := t.starts[len(t.starts)-t.limit].Add(t.window); freed.After(next) {
			next = freed
		}
	}
	return next
}

func (t *Throttle) record(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts = append(t.starts, now)
}
