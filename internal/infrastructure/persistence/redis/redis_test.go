package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
)

// unreachable returns a cache whose client points at a closed port.
func unreachable(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "leaderboard:ranking:default", RankingKey(""))
	assert.Equal(t, "leaderboard:ranking:spring-2025", RankingKey("spring-2025"))
	assert.Equal(t, "leaderboard:points:default", PointsKey(""))
	assert.Equal(t, "leaderboard:meta:cohort-a", MetaKey("cohort-a"))
	assert.Equal(t, "lock:"+leaderboard.LockName(""), LockKey(leaderboard.LockName("")))
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache.internal"
	cfg.Port = 6380
	cfg.DB = 2

	opts := cfg.Options()
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, cfg.PoolSize, opts.PoolSize)
}

func TestCache_Validation(t *testing.T) {
	c := unreachable(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
}

func TestNewCache_FailsWhenUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.DialTimeout = 50 * time.Millisecond
	cfg.ConnectRetry.Attempts = 1

	_, err := NewCache(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestLocker_PropagatesConnectionErrors(t *testing.T) {
	l := NewLocker(unreachable(t), 0)
	assert.Equal(t, TTLDistributedLock, l.ttl)

	_, err := l.Lock(context.Background(), "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)

	_, err = l.Lock(context.Background(), leaderboard.LockName("s1"))
	assert.Error(t, err)
}

func TestRankingCache_TopNonPositiveLimit(t *testing.T) {
	rc := NewRankingCache(unreachable(t), 0)
	assert.Equal(t, TTLRankingCache, rc.ttl)

	rows, err := rc.Top(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRankingCache_TopUnreachableIsAnError(t *testing.T) {
	rc := NewRankingCache(unreachable(t), time.Minute)

	_, err := rc.Top(context.Background(), "", 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestAssembleTop(t *testing.T) {
	members := []redis.Z{
		{Score: 1, Member: "carol"},
		{Score: 2, Member: "alice"},
	}

	tests := []struct {
		name   string
		meta   RankingMeta
		limit  int
		points []interface{}
		want   []leaderboard.CachedRank
	}{
		{
			name:   "complete",
			meta:   RankingMeta{Count: 3},
			limit:  2,
			points: []interface{}{"600", "500"},
			want: []leaderboard.CachedRank{
				{UserID: "carol", GlobalRank: 1, TotalPoints: 600},
				{UserID: "alice", GlobalRank: 2, TotalPoints: 500},
			},
		},
		{
			name:   "whole ranking shorter than limit",
			meta:   RankingMeta{Count: 2},
			limit:  10,
			points: []interface{}{"600", "500"},
			want: []leaderboard.CachedRank{
				{UserID: "carol", GlobalRank: 1, TotalPoints: 600},
				{UserID: "alice", GlobalRank: 2, TotalPoints: 500},
			},
		},
		{
			name:   "sorted set lost members",
			meta:   RankingMeta{Count: 5},
			limit:  10,
			points: []interface{}{"600", "500"},
			want:   []leaderboard.CachedRank{},
		},
		{
			name:   "points hash expired",
			meta:   RankingMeta{Count: 2},
			limit:  2,
			points: []interface{}{nil, nil},
			want:   []leaderboard.CachedRank{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assembleTop(tt.meta, tt.limit, members, tt.points))
		})
	}
}

func TestParsePoints(t *testing.T) {
	assert.Equal(t, 600, parsePoints("600"))
	assert.Equal(t, 0, parsePoints(nil))
	assert.Equal(t, 0, parsePoints("x"))
}
