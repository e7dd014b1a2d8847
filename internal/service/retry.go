package service

import (
	"context"
	"time"
)

// backoff returns base * 2^(attempt-1), capped at limit.
func backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}

// retry calls fn up to attempts times, sleeping with exponential backoff in between.
// It returns the last error, or ctx.Err() if the context ends while waiting.
func retry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		t := time.NewTimer(backoff(i, base, time.Minute))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
