// Package retry runs an operation again after a failure, doubling the wait
// between attempts.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1000 * time.Millisecond
)

// Config contains retry configuration parameters.
type Config struct {
	// MaxRetries is the number of attempts made after the first one fails.
	MaxRetries int

	// InitialDelay is the wait before the first retry. It doubles for every
	// following retry.
	InitialDelay time.Duration

	// MaxDelay caps the doubled delay. Zero leaves it uncapped.
	MaxDelay time.Duration
}

// DefaultConfig returns three retries starting at one second.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
	}
}

// Func is a single attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// OnRetryFunc is called before waiting for the next attempt.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// Options contains optional retry behavior.
type Options struct {
	// OnRetry is called once per retry, before the wait.
	OnRetry OnRetryFunc

	// Sleep replaces the timer based wait.
	Sleep SleepFunc
}

// Do calls fn until it succeeds or the retry budget is spent, and returns
// the last error. Attempts never overlap: each wait finishes before the next
// attempt starts.
func Do(ctx context.Context, cfg Config, fn Func, opts *Options) error {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := cfg.InitialDelay
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	sleep := Sleep
	var onRetry OnRetryFunc
	if opts != nil {
		if opts.Sleep != nil {
			sleep = opts.Sleep
		}
		onRetry = opts.OnRetry
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if retries == 0 {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}

		retries--
		delay = NextDelay(delay, cfg.MaxDelay)
	}
}

// NextDelay doubles d, capped at limit when limit is positive.
func NextDelay(d, limit time.Duration) time.Duration {
	next := d * 2
	if next < d {
		// overflow
		next = d
	}
	if limit > 0 && next > limit {
		return limit
	}
	return next
}

// Sleep waits for d using a timer and returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
