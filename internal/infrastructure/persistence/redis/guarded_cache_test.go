package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/pkg/circuitbreaker"
)

type flakyMirror struct {
	err   error
	calls int
}

func (f *flakyMirror) StoreRanking(context.Context, string, []leaderboard.CachedRank) error {
	f.calls++
	return f.err
}

func (f *flakyMirror) Top(context.Context, string, int) ([]leaderboard.CachedRank, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []leaderboard.CachedRank{{UserID: "u1", GlobalRank: 1, TotalPoints: 10}}, nil
}

func TestGuardedRankingCache_FailsFastWhenOpen(t *testing.T) {
	inner := &flakyMirror{err: errors.New("i/o timeout")}
	g := NewGuardedRankingCache(inner, circuitbreaker.New(circuitbreaker.Config{
		Name:             "mirror",
		FailureThreshold: 2,
		CoolDown:         time.Hour,
	}))
	ctx := context.Background()

	_, err := g.Top(ctx, "", 5)
	require.Error(t, err)
	require.Error(t, g.StoreRanking(ctx, "", nil))
	assert.Equal(t, circuitbreaker.StateOpen, g.State())

	_, err = g.Top(ctx, "", 5)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestGuardedRankingCache_PassesThrough(t *testing.T) {
	inner := &flakyMirror{}
	g := NewGuardedRankingCache(inner, circuitbreaker.RankingMirror(nil))

	rows, err := g.Top(context.Background(), "spring", 1)
	require.NoError(t, err)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.Equal(t, circuitbreaker.StateClosed, g.State())
}
