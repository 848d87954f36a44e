package redis

import (
	"context"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/pkg/circuitbreaker"
)

// GuardedRankingCache puts a circuit breaker in front of a ranking mirror.
// While Redis keeps failing, reads fail fast and the caller falls back to the
// repository without waiting on socket timeouts.
type GuardedRankingCache struct {
	inner   leaderboard.RankingCache
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedRankingCache wraps inner with breaker.
func NewGuardedRankingCache(inner leaderboard.RankingCache, breaker *circuitbreaker.CircuitBreaker) *GuardedRankingCache {
	return &GuardedRankingCache{inner: inner, breaker: breaker}
}

// StoreRanking implements leaderboard.RankingCache.
func (g *GuardedRankingCache) StoreRanking(ctx context.Context, series string, ranking []leaderboard.CachedRank) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.StoreRanking(ctx, series, ranking)
	})
}

// Top implements leaderboard.RankingCache.
func (g *GuardedRankingCache) Top(ctx context.Context, series string, limit int) ([]leaderboard.CachedRank, error) {
	var rows []leaderboard.CachedRank
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rows, err = g.inner.Top(ctx, series, limit)
		return err
	})
	return rows, err
}

// State reports the breaker state, for health output.
func (g *GuardedRankingCache) State() circuitbreaker.State {
	return g.breaker.State()
}
