package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2}
}

func TestPolicy_Do_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(4).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Again(errors.New("busy"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_StopsOnPermanentError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_Exhausted(t *testing.T) {
	busy := errors.New("busy")
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Again(busy)
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastPolicy(3).Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Factor: 2}

	assert.Equal(t, 10*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 20*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 40*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 50*time.Millisecond, p.Backoff(4))
}
