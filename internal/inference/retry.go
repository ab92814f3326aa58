package inference

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy decides how often a single model is retried and how long to
// wait between attempts.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultRetryPolicy retries three times starting at five seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     2 * time.Minute,
		BackoffFactor:  2.0,
		Jitter:         false,
	}
}

// Retryable reports whether err warrants another attempt on the same model.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindRateLimited, KindUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// Backoff returns the delay before retry number attempt (zero-based). A
// RetryAfter hint on err takes precedence.
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	var ierr *Error
	if errors.As(err, &ierr) && ierr.RetryAfter > 0 {
		return ierr.RetryAfter
	}

	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	backoff := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt))
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	duration := time.Duration(backoff)
	if p.Jitter {
		duration += time.Duration(float64(duration) * 0.1 * (2*rand.Float64() - 1))
	}
	return duration
}

// Do runs fn until it succeeds, returns a non-retryable error, or the retry
// budget is spent. Waits go through clock.
func (p RetryPolicy) Do(ctx context.Context, clock Clock, fn func(attempt int) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if !p.Retryable(err) || attempt >= p.MaxRetries {
			return err
		}
		if sleepErr := clock.Sleep(ctx, p.Backoff(attempt, err)); sleepErr != nil {
			return sleepErr
		}
	}
}
