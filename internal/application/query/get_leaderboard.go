package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD ENTRY QUERY
// The lazy read path: the first query for (user, series) creates an unranked
// entry so that later rank updates have something to mutate.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardEntryHandler returns or lazily creates an entry.
type GetLeaderboardEntryHandler struct {
	repo   leaderboard.Repository
	clock  Clock
	logger *slog.Logger
}

// NewGetLeaderboardEntryHandler creates a new handler.
func NewGetLeaderboardEntryHandler(repo leaderboard.Repository, logger *slog.Logger) *GetLeaderboardEntryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardEntryHandler{repo: repo, clock: utcNow, logger: logger}
}

// WithClock overrides the time source used to stamp new entries.
func (h *GetLeaderboardEntryHandler) WithClock(c Clock) *GetLeaderboardEntryHandler {
	h.clock = c
	return h
}

// Handle returns the entry of (userID, series).
func (h *GetLeaderboardEntryHandler) Handle(ctx context.Context, userID, series string) (*leaderboard.Entry, error) {
	if userID == "" {
		return nil, shared.ValidationError("leaderboard", "GetEntry", "user_id is required")
	}

	entry, created, err := h.repo.GetOrCreate(ctx, userID, series, h.clock())
	if err != nil {
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	if created {
		h.logger.Debug("created leaderboard entry", "user_id", userID, "series", series)
	}
	return entry, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP QUERY
// Top-N of a series, served from the ranking cache when it is warm.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultTopLimit is used when the caller passes a non-positive limit.
const DefaultTopLimit = 10

// MaxTopLimit caps a single top-N read.
const MaxTopLimit = 100

// GetTopHandler serves top-N reads.
type GetTopHandler struct {
	repo   leaderboard.Repository
	cache  leaderboard.RankingCache
	logger *slog.Logger
}

// NewGetTopHandler creates a new handler. cache may be nil.
func NewGetTopHandler(repo leaderboard.Repository, cache leaderboard.RankingCache, logger *slog.Logger) *GetTopHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetTopHandler{repo: repo, cache: cache, logger: logger}
}

// Handle returns up to limit rows in rank order.
func (h *GetTopHandler) Handle(ctx context.Context, series string, limit int) ([]leaderboard.CachedRank, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}

	if h.cache != nil {
		rows, err := h.cache.Top(ctx, series, limit)
		if err == nil && len(rows) > 0 {
			return rows, nil
		}
		if err != nil {
			h.logger.Warn("ranking cache unavailable, reading repository", "series", series, "error", err)
		}
	}

	entries, err := h.repo.ListBySeries(ctx, series)
	if err != nil {
		return nil, fmt.Errorf("get top: %w", err)
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	rows := make([]leaderboard.CachedRank, len(entries))
	for i, e := range entries {
		rows[i] = leaderboard.CachedRank{
			UserID:      e.UserID,
			GlobalRank:  e.GlobalRank,
			TotalPoints: e.TotalPoints,
		}
	}
	return rows, nil
}
