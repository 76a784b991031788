package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragsody/internal/domain"
)

func fastPolicy(retries int) Policy {
	return Policy{
		Timeout:         50 * time.Millisecond,
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestResilient_RetriesTransientFailures(t *testing.T) {
	calls := 0
	gen := domain.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 service unavailable")
		}
		return "ok", nil
	})

	out, err := NewResilient(gen, fastPolicy(3), nil).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestResilient_GivesUpAfterBudget(t *testing.T) {
	calls := 0
	gen := domain.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	_, err := NewResilient(gen, fastPolicy(2), nil).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 3, calls)
}

func TestResilient_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("invalid api key")
	gen := domain.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "", PermanentError(sentinel)
	})

	_, err := NewResilient(gen, fastPolicy(5), nil).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestResilient_TimeoutAppliesPerAttempt(t *testing.T) {
	gen := domain.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	start := time.Now()
	_, err := NewResilient(gen, fastPolicy(1), nil).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResilient_CancelledParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := domain.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		return "", ctx.Err()
	})

	_, err := NewResilient(gen, fastPolicy(3), nil).Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApproxCounter(t *testing.T) {
	c := ApproxCounter{}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 2, c.Count("abcde"))
	assert.Equal(t, "abcd", c.Truncate("abcdefgh", 1))
	assert.Equal(t, "short", c.Truncate("short", 10))
	assert.Equal(t, "", c.Truncate("short", 0))
}
