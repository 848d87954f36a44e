package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING CACHE
// ══════════════════════════════════════════════════════════════════════════════

// RankingCache implements leaderboard.RankingCache using Redis sorted sets.
//
// Layout per series:
//   - Sorted set "leaderboard:ranking:{series}" stores userID -> global rank
//   - Hash "leaderboard:points:{series}" stores userID -> total points
//   - String "leaderboard:meta:{series}" stores RankingMeta JSON
//
// Ranks are dense, so the top N is a plain ZRANGE 0..N-1.
type RankingCache struct {
	cache *Cache
	ttl   time.Duration
	clock func() time.Time
}

// RankingMeta describes the mirrored ranking.
type RankingMeta struct {
	StoredAt time.Time `json:"stored_at"`
	Count    int       `json:"count"`
	Series   string    `json:"series"`
}

// NewRankingCache creates a RankingCache. A non-positive ttl uses
// TTLRankingCache.
func NewRankingCache(cache *Cache, ttl time.Duration) *RankingCache {
	if ttl <= 0 {
		ttl = TTLRankingCache
	}
	return &RankingCache{
		cache: cache,
		ttl:   ttl,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// StoreRanking replaces the mirrored ranking of a series in one MULTI/EXEC.
func (c *RankingCache) StoreRanking(ctx context.Context, series string, ranking []leaderboard.CachedRank) error {
	rankKey := RankingKey(series)
	pointsKey := PointsKey(series)

	pipe := c.cache.Client().TxPipeline()
	pipe.Del(ctx, rankKey, pointsKey)

	if len(ranking) > 0 {
		members := make([]redis.Z, 0, len(ranking))
		points := make(map[string]interface{}, len(ranking))
		for _, r := range ranking {
			if r.UserID == "" {
				continue
			}
			members = append(members, redis.Z{Score: float64(r.GlobalRank), Member: r.UserID})
			points[r.UserID] = r.TotalPoints
		}
		if len(members) > 0 {
			pipe.ZAdd(ctx, rankKey, members...)
			pipe.HSet(ctx, pointsKey, points)
			pipe.Expire(ctx, rankKey, c.ttl)
			pipe.Expire(ctx, pointsKey, c.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store ranking: %w", err)
	}

	written := 0
	for _, r := range ranking {
		if r.UserID != "" {
			written++
		}
	}
	meta := RankingMeta{StoredAt: c.clock(), Count: written, Series: series}
	return c.cache.Set(ctx, MetaKey(series), meta, c.ttl)
}

// Top returns up to limit rows of the mirrored ranking. An empty result
// means the mirror is cold: no meta record, or keys that no longer agree
// with it (one of them expired or was evicted).
func (c *RankingCache) Top(ctx context.Context, series string, limit int) ([]leaderboard.CachedRank, error) {
	if limit <= 0 {
		return []leaderboard.CachedRank{}, nil
	}

	var meta RankingMeta
	if err := c.cache.Get(ctx, MetaKey(series), &meta); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return []leaderboard.CachedRank{}, nil
		}
		return nil, fmt.Errorf("read ranking meta: %w", err)
	}

	members, err := c.cache.Client().ZRangeWithScores(ctx, RankingKey(series), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	if len(members) == 0 {
		return []leaderboard.CachedRank{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i], _ = m.Member.(string)
	}

	points, err := c.cache.Client().HMGet(ctx, PointsKey(series), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking points: %w", err)
	}

	return assembleTop(meta, limit, members, points), nil
}

// assembleTop joins ranks with points, or returns an empty slice when the
// stored rows do not match what meta says was written.
func assembleTop(meta RankingMeta, limit int, members []redis.Z, points []interface{}) []leaderboard.CachedRank {
	want := meta.Count
	if limit < want {
		want = limit
	}
	if len(members) != want || len(points) != len(members) {
		return []leaderboard.CachedRank{}
	}

	rows := make([]leaderboard.CachedRank, len(members))
	for i, m := range members {
		if points[i] == nil {
			return []leaderboard.CachedRank{}
		}
		id, _ := m.Member.(string)
		rows[i] = leaderboard.CachedRank{
			UserID:      id,
			GlobalRank:  int(m.Score),
			TotalPoints: parsePoints(points[i]),
		}
	}
	return rows
}

func parsePoints(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
