package memory

import (
	"context"
	"sync"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

type entryKey struct {
	userID string
	series string
}

// LeaderboardRepository is an in-memory leaderboard.Repository.
type LeaderboardRepository struct {
	mu      sync.Mutex
	entries map[entryKey]*leaderboard.Entry
}

// NewLeaderboardRepository creates an empty repository.
func NewLeaderboardRepository() *LeaderboardRepository {
	return &LeaderboardRepository{entries: make(map[entryKey]*leaderboard.Entry)}
}

// Get implements leaderboard.Repository.
func (r *LeaderboardRepository) Get(ctx context.Context, userID, series string) (*leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[entryKey{userID, series}]
	if !ok {
		return nil, shared.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

// GetOrCreate implements leaderboard.Repository.
func (r *LeaderboardRepository) GetOrCreate(ctx context.Context, userID, series string, now time.Time) (*leaderboard.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{userID, series}
	if e, ok := r.entries[key]; ok {
		return cloneEntry(e), false, nil
	}
	e := leaderboard.NewEntry(userID, series, now)
	r.entries[key] = e
	return cloneEntry(e), true, nil
}

// Update implements leaderboard.Repository.
func (r *LeaderboardRepository) Update(ctx context.Context, userID, series string, mutate func(e *leaderboard.Entry) error) (*leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entryKey{userID, series}
	e, ok := r.entries[key]
	if !ok {
		return nil, shared.ErrEntryNotFound
	}

	working := cloneEntry(e)
	if err := mutate(working); err != nil {
		return nil, err
	}
	r.entries[key] = working
	return cloneEntry(working), nil
}

// ListBySeries implements leaderboard.Repository.
func (r *LeaderboardRepository) ListBySeries(ctx context.Context, series string) ([]*leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*leaderboard.Entry, 0)
	for k, e := range r.entries {
		if k.series == series {
			out = append(out, cloneEntry(e))
		}
	}
	leaderboard.SortForRanking(out)
	return out, nil
}

// ApplyRanks implements leaderboard.Repository. All assignments become
// visible at once.
func (r *LeaderboardRepository) ApplyRanks(ctx context.Context, series string, ranks []leaderboard.Assignment, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, a := range ranks {
		e, ok := r.entries[entryKey{a.UserID, series}]
		if !ok {
			// Removed since the ranking was computed.
			continue
		}
		e.SetGlobalRank(a.GlobalRank, now)
		updated++
	}
	return updated, nil
}

func cloneEntry(e *leaderboard.Entry) *leaderboard.Entry {
	c := *e
	c.History = append([]leaderboard.Snapshot{}, e.History...)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// Locker is a process-local leaderboard.Locker. A held name fails fast with
// shared.ErrRecalculationInProgress.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker creates a locker with no held names.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

// Lock implements leaderboard.Locker.
func (l *Locker) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[name]; ok {
		return nil, shared.ErrRecalculationInProgress
	}
	l.held[name] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
