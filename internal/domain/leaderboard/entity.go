// Package leaderboard models per-user leaderboard entries: rank counters,
// a bounded rank history and the full-population ranking order.
package leaderboard

import (
	"sort"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// Unranked is the rank every scope holds until the first recalculation.
	Unranked = 999999

	// HistoryLimit is the number of rank snapshots kept per entry.
	HistoryLimit = 30

	// TopPerformanceRank is the global rank at or above which an entry is
	// flagged as a top performer.
	TopPerformanceRank = 100

	// MostImprovedDelta is the number of places an entry must climb since the
	// previous snapshot to be flagged as most improved.
	MostImprovedDelta = 50

	// DefaultSeries is the series of entries not tied to a named competition.
	DefaultSeries = ""
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is one point of an entry's rank history.
type Snapshot struct {
	Date   time.Time `json:"date"`
	Rank   int       `json:"rank"`
	Points int       `json:"points"`
}

// Entry is the leaderboard state of one user within one series.
type Entry struct {
	UserID string
	Series string

	GlobalRank   int
	NationalRank int
	RegionalRank int

	BadgeCount    int
	Streak        int
	LongestStreak int
	TotalPoints   int

	// History is ordered oldest first and never longer than HistoryLimit.
	History []Snapshot

	TopPerformance bool
	MostImproved   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntry creates an unranked entry with zeroed counters.
func NewEntry(userID, series string, now time.Time) *Entry {
	return &Entry{
		UserID:       userID,
		Series:       series,
		GlobalRank:   Unranked,
		NationalRank: Unranked,
		RegionalRank: Unranked,
		History:      []Snapshot{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsRanked reports whether the entry has received a global rank.
func (e *Entry) IsRanked() bool {
	return e.GlobalRank != Unranked
}

// RankUpdate carries the optional fields of a per-user rank update.
// A nil pointer leaves the field unchanged.
type RankUpdate struct {
	NationalRank *int
	RegionalRank *int
	GlobalRank   *int
	BadgeCount   *int
	Streak       *int
	TotalPoints  *int
}

// Validate checks ranks are at least 1 and counters non-negative.
func (u RankUpdate) Validate() error {
	for _, r := range []*int{u.NationalRank, u.RegionalRank, u.GlobalRank} {
		if r != nil && *r < 1 {
			return shared.ErrInvalidRank
		}
	}
	for _, c := range []*int{u.BadgeCount, u.Streak, u.TotalPoints} {
		if c != nil && *c < 0 {
			return shared.ErrNegativeCounter
		}
	}
	return nil
}

// IsEmpty reports whether no field is set.
func (u RankUpdate) IsEmpty() bool {
	return u.NationalRank == nil && u.RegionalRank == nil && u.GlobalRank == nil &&
		u.BadgeCount == nil && u.Streak == nil && u.TotalPoints == nil
}

// Apply snapshots the current global rank and points into the history, then
// applies the set fields and recomputes the derived flags.
func (e *Entry) Apply(u RankUpdate, now time.Time) error {
	if err := u.Validate(); err != nil {
		return err
	}

	e.pushSnapshot(Snapshot{Date: now, Rank: e.GlobalRank, Points: e.TotalPoints})

	if u.NationalRank != nil {
		e.NationalRank = *u.NationalRank
	}
	if u.RegionalRank != nil {
		e.RegionalRank = *u.RegionalRank
	}
	if u.GlobalRank != nil {
		e.GlobalRank = *u.GlobalRank
	}
	if u.BadgeCount != nil {
		e.BadgeCount = *u.BadgeCount
	}
	if u.TotalPoints != nil {
		e.TotalPoints = *u.TotalPoints
	}
	if u.Streak != nil {
		e.Streak = *u.Streak
		if e.Streak > e.LongestStreak {
			e.LongestStreak = e.Streak
		}
	}

	e.recomputeDerived()
	e.UpdatedAt = now
	return nil
}

func (e *Entry) pushSnapshot(s Snapshot) {
	e.History = append(e.History, s)
	if over := len(e.History) - HistoryLimit; over > 0 {
		e.History = append([]Snapshot(nil), e.History[over:]...)
	}
}

// recomputeDerived refreshes TopPerformance and MostImproved.
// MostImproved compares only against the snapshot before the one just pushed.
func (e *Entry) recomputeDerived() {
	e.TopPerformance = e.GlobalRank <= TopPerformanceRank

	n := len(e.History)
	e.MostImproved = n >= 2 && e.History[n-2].Rank-e.GlobalRank >= MostImprovedDelta
}

// SetGlobalRank assigns a recalculated rank without touching the history.
func (e *Entry) SetGlobalRank(rank int, now time.Time) {
	e.GlobalRank = rank
	e.TopPerformance = rank <= TopPerformanceRank
	e.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Less is the ranking order: points, then badges, then streak, all descending.
// User ID breaks remaining ties so that reruns produce the same permutation.
func Less(a, b *Entry) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	if a.BadgeCount != b.BadgeCount {
		return a.BadgeCount > b.BadgeCount
	}
	if a.Streak != b.Streak {
		return a.Streak > b.Streak
	}
	return a.UserID < b.UserID
}

// SortForRanking orders entries in place by Less.
func SortForRanking(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}

// Assignment is a computed global rank for one user.
type Assignment struct {
	UserID         string
	GlobalRank     int
	TopPerformance bool
}

// ComputeRanks returns dense 1-based ranks for the population without
// mutating it. The result is in rank order.
func ComputeRanks(entries []*Entry) []Assignment {
	ordered := make([]*Entry, len(entries))
	copy(ordered, entries)
	SortForRanking(ordered)

	out := make([]Assignment, len(ordered))
	for i, e := range ordered {
		rank := i + 1
		out[i] = Assignment{
			UserID:         e.UserID,
			GlobalRank:     rank,
			TopPerformance: rank <= TopPerformanceRank,
		}
	}
	return out
}
