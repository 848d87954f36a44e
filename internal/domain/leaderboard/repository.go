package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists leaderboard entries keyed by (user, series).
// Implementations live in the infrastructure layer (PostgreSQL, in-memory).
type Repository interface {
	// Get returns the entry or shared.ErrEntryNotFound.
	Get(ctx context.Context, userID, series string) (*Entry, error)

	// GetOrCreate returns the entry, creating an unranked one when missing.
	// The boolean reports whether the entry was created by this call.
	GetOrCreate(ctx context.Context, userID, series string, now time.Time) (*Entry, bool, error)

	// Update applies mutate to an existing entry as one atomic
	// read-modify-write. It returns shared.ErrEntryNotFound when missing.
	Update(ctx context.Context, userID, series string, mutate func(e *Entry) error) (*Entry, error)

	// ListBySeries returns every entry of the series in ranking order.
	ListBySeries(ctx context.Context, series string) ([]*Entry, error)

	// ApplyRanks writes the global rank and top-performance flag of every
	// assignment in a single commit. Other fields are left untouched so that
	// concurrent per-user updates are not overwritten. It returns the number
	// of rewritten entries.
	ApplyRanks(ctx context.Context, series string, ranks []Assignment, now time.Time) (int, error)
}

// Locker grants named exclusive locks. Unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(ctx context.Context) error, err error)
}

// RankingCache mirrors a recalculated ranking for cheap top-N reads.
// It is optional and never the source of truth.
type RankingCache interface {
	StoreRanking(ctx context.Context, series string, ranking []CachedRank) error
	Top(ctx context.Context, series string, limit int) ([]CachedRank, error)
}

// CachedRank is one row of the cached ranking.
type CachedRank struct {
	UserID      string
	GlobalRank  int
	TotalPoints int
}

// LockName returns the recalculation lock name of a series.
func LockName(series string) string {
	if series == DefaultSeries {
		return "leaderboard:recalc:default"
	}
	return "leaderboard:recalc:" + series
}
