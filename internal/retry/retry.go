// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry implements bounded exponential backoff for transient
// failures. Callers mark retryable errors with Transient; everything else
// stops the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Default policy constants. The delay before retry n is
// Base * Multiplier^(n-1), capped at Cap, with ±25% jitter:
// 1 s, 2 s, 4 s, ... up to 30 s.
const (
	DefaultMaxRetries = 3
	DefaultBase       = 1 * time.Second
	DefaultCap        = 30 * time.Second
	DefaultMultiplier = 2.0
)

// Policy describes one retry loop: how many retries, and how long to wait
// between them.
type Policy struct {
	// MaxRetries is the number of retries after the first call, so a
	// policy with MaxRetries 3 makes at most 4 calls.
	MaxRetries int

	// Base is the delay before the first retry.
	Base time.Duration

	// Cap bounds any single delay.
	Cap time.Duration

	// Multiplier is the per-retry growth factor.
	Multiplier float64
}

// withDefaults fills zero fields with the package defaults.
func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.Base <= 0 {
		p.Base = DefaultBase
	}
	if p.Cap <= 0 {
		p.Cap = DefaultCap
	}
	if p.Multiplier <= 1 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// Delay returns the jittered wait before retry attempt n (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1)))
	if d > p.Cap || d <= 0 {
		d = p.Cap
	}
	// Jitter within [0.75d, 1.25d) to avoid synchronized retries.
	return time.Duration(float64(d) * (0.75 + 0.5*rand.Float64()))
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable. A nil error stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked with
// Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// minWaiter is implemented by errors that carry a server-mandated minimum
// wait, such as HTTP 429 responses with a Retry-After header. When the
// mandated wait exceeds the computed backoff, the mandate wins.
type minWaiter interface {
	RetryAfter() time.Duration
}

// Do runs fn, retrying transient failures per the policy. Non-transient
// errors return immediately. After exhausting retries the last error is
// returned wrapped with the attempt count. A context cancelled during a
// backoff wait returns ctx.Err().
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt >= p.MaxRetries {
			return fmt.Errorf("after %d retries: %w", p.MaxRetries, lastErr)
		}

		wait := p.Delay(attempt + 1)
		var mw minWaiter
		if errors.As(lastErr, &mw) && mw.RetryAfter() > wait {
			wait = mw.RetryAfter()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
