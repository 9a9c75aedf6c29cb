// Package retry applies one bounded, linearly backing-off policy to read-only
// network calls.
package retry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts int
	Step        time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Step: 2 * time.Second}
}

// Permanent marks err as not worth retrying (decode failures, client errors).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context ends or
// the attempts run out. The n-th retry waits n*Step.
func Do(ctx context.Context, policy Policy, op func() error) error {
	return backoff.Retry(op, policy.backOff(ctx))
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, policy Policy, op func() (T, error)) (T, error) {
	return backoff.RetryWithData(op, policy.backOff(ctx))
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var b backoff.BackOff = &linearBackOff{step: p.Step}
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// StatusError is a non-2xx HTTP response from an upstream node.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// CheckStatus returns nil for 2xx codes. Client errors other than 429 are
// permanent; everything else may be retried.
func CheckStatus(code int, body string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &StatusError{Code: code, Body: body}
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}
