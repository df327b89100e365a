package mq

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff retries an operation with exponentially growing delays.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  int
	MaxAttempts int
}

// DefaultBackoff is used for zero fields.
var DefaultBackoff = Backoff{
	Initial:     100 * time.Millisecond,
	Max:         10 * time.Second,
	Multiplier:  2,
	MaxAttempts: 5,
}

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Multiplier <= 1 {
		b.Multiplier = DefaultBackoff.Multiplier
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultBackoff.MaxAttempts
	}
	return b
}

// schedule builds the delay sequence. It yields backoff.Stop once
// MaxAttempts-1 retries have been handed out.
func (b Backoff) schedule(limited bool) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	eb.MaxInterval = b.Max
	eb.Multiplier = float64(b.Multiplier)
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	if !limited {
		return eb
	}
	return backoff.WithMaxRetries(eb, uint64(b.MaxAttempts-1))
}

// Delay returns the wait before retry number n, counting from zero.
func (b Backoff) Delay(n int) time.Duration {
	s := b.withDefaults().schedule(false)
	d := s.NextBackOff()
	for range n {
		d = s.NextBackOff()
	}
	return d
}

// Do runs op until it succeeds, ctx ends, stop closes, or MaxAttempts
// attempts have failed, in which case ErrMaxRetriesExceeded is returned.
func (b Backoff) Do(ctx context.Context, stop <-chan struct{}, op func() error) error {
	s := b.withDefaults().schedule(true)
	for {
		if err := op(); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := s.NextBackOff()
		if wait == backoff.Stop {
			return ErrMaxRetriesExceeded
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return ErrShutdown
		case <-time.After(wait):
		}
	}
}
