package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func newBreaker(clock *fakeClock, transitions *[]string) *CircuitBreaker {
	return New(Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		CoolDown:         time.Minute,
		Now:              clock.Now,
		OnStateChange: func(_ string, from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := newBreaker(clock, &transitions)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejection(err))
	assert.False(t, called)
	assert.Equal(t, 1, cb.Counts().Rejected)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_ProbeClosesOrReopens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := newBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Minute)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Minute)
	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{
		"closed->open",
		"open->half-open",
		"half-open->open",
		"open->half-open",
		"half-open->closed",
	}, transitions)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := newBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyProbes)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var transitions []string
	cb := newBreaker(clock, &transitions)

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Counts().TotalFailures)
}

func TestRankingMirror(t *testing.T) {
	cb := RankingMirror(nil)
	assert.Equal(t, "ranking-mirror", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
}
