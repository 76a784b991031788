// Package llm holds the policies applied wherever the generation capability
// is invoked: per-call timeouts, retries and prompt token budgets.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ragsody/internal/domain"
)

// Policy bounds a single generation call.
type Policy struct {
	// Timeout caps each attempt. Zero disables the per-attempt deadline.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:         120 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// PermanentError marks a failure that must not be retried.
func PermanentError(err error) error {
	return backoff.Permanent(err)
}

// Resilient wraps a Generator with a timeout and retry policy.
type Resilient struct {
	next   domain.Generator
	policy Policy
	logger *slog.Logger
}

func NewResilient(next domain.Generator, policy Policy, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 200 * time.Millisecond
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = 5 * time.Second
	}
	return &Resilient{next: next, policy: policy, logger: logger}
}

// Generate calls the wrapped generator, retrying transient failures with
// exponential backoff until the retry budget or ctx is exhausted.
func (r *Resilient) Generate(ctx context.Context, prompt string) (string, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialInterval
	eb.MaxInterval = r.policy.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.policy.MaxRetries)), ctx)

	var out string
	attempt := 0
	op := func() error {
		attempt++
		callCtx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}
		text, err := r.next.Generate(callCtx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		out = text
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("generation attempt failed", "attempt", attempt, "retry_in", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return "", fmt.Errorf("generation failed after %d attempt(s): %w", attempt, err)
	}
	return out, nil
}
