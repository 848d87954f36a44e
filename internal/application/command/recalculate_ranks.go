package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE RANKS COMMAND
// Full recomputation of global ranks for one series. The new ranking is built
// in a side buffer and committed as a single batch, under an exclusive lock
// per series. Re-running it on unchanged data yields the same ranking.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateRanksCommand selects the series to recalculate.
// An empty Series selects entries without a series.
type RecalculateRanksCommand struct {
	Series string
}

// RecalculateRanksResult describes a completed run.
type RecalculateRanksResult struct {
	RunID        string
	Series       string
	UpdatedCount int
	StartedAt    time.Time
	Duration     time.Duration
}

// RecalculateRanksHandler handles the RecalculateRanksCommand.
type RecalculateRanksHandler struct {
	repo       leaderboard.Repository
	locker     leaderboard.Locker
	cache      leaderboard.RankingCache
	lockPolicy retry.Policy
	handlerOptions
}

// NewRecalculateRanksHandler creates a new handler. cache may be nil.
func NewRecalculateRanksHandler(
	repo leaderboard.Repository,
	locker leaderboard.Locker,
	cache leaderboard.RankingCache,
	opts ...Option,
) *RecalculateRanksHandler {
	return &RecalculateRanksHandler{
		repo:           repo,
		locker:         locker,
		cache:          cache,
		lockPolicy:     retry.LockPolicy(),
		handlerOptions: buildOptions(opts),
	}
}

// WithLockPolicy overrides the lock acquisition backoff.
func (h *RecalculateRanksHandler) WithLockPolicy(p retry.Policy) *RecalculateRanksHandler {
	h.lockPolicy = p
	return h
}

// Handle runs the recalculation.
func (h *RecalculateRanksHandler) Handle(ctx context.Context, cmd RecalculateRanksCommand) (*RecalculateRanksResult, error) {
	result := &RecalculateRanksResult{
		RunID:     uuid.NewString(),
		Series:    cmd.Series,
		StartedAt: h.clock(),
	}
	logger := h.logger.With("run_id", result.RunID, "series", cmd.Series)

	unlock, err := h.acquire(ctx, leaderboard.LockName(cmd.Series))
	if err != nil {
		return nil, err
	}
	defer func() {
		// The run may have been cancelled; release regardless.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release recalculation lock", "error", err)
		}
	}()

	entries, err := h.repo.ListBySeries(ctx, cmd.Series)
	if err != nil {
		return nil, fmt.Errorf("recalculate ranks: list entries: %w", err)
	}

	ranks := leaderboard.ComputeRanks(entries)

	updated, err := h.repo.ApplyRanks(ctx, cmd.Series, ranks, h.clock())
	if err != nil {
		return nil, fmt.Errorf("recalculate ranks: apply: %w", err)
	}

	result.UpdatedCount = updated
	result.Duration = h.clock().Sub(result.StartedAt)

	h.mirror(ctx, cmd.Series, entries, ranks, logger)

	logger.Info("ranks recalculated",
		"updated", updated,
		"duration", result.Duration.String(),
	)
	h.publish(shared.NewRanksRecalculatedEvent(result.RunID, cmd.Series, updated, result.Duration, h.clock()))

	return result, nil
}

// acquire takes the series lock, backing off while another run holds it.
func (h *RecalculateRanksHandler) acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	unlock, err := retry.DoWithData(ctx, h.lockPolicy, func(ctx context.Context) (func(context.Context) error, error) {
		unlock, err := h.locker.Lock(ctx, name)
		if errors.Is(err, shared.ErrRecalculationInProgress) {
			return nil, retry.Again(err)
		}
		return unlock, err
	})
	if err != nil {
		if errors.Is(err, shared.ErrRecalculationInProgress) {
			return nil, shared.ErrRecalculationInProgress
		}
		return nil, fmt.Errorf("recalculate ranks: acquire lock: %w", err)
	}
	return unlock, nil
}

// mirror pushes the committed ranking to the cache. Failures only degrade
// top-N reads, which fall back to the repository.
func (h *RecalculateRanksHandler) mirror(ctx context.Context, series string, entries []*leaderboard.Entry, ranks []leaderboard.Assignment, logger *slog.Logger) {
	if h.cache == nil {
		return
	}

	points := make(map[string]int, len(entries))
	for _, e := range entries {
		points[e.UserID] = e.TotalPoints
	}

	ranking := make([]leaderboard.CachedRank, len(ranks))
	for i, r := range ranks {
		ranking[i] = leaderboard.CachedRank{
			UserID:      r.UserID,
			GlobalRank:  r.GlobalRank,
			TotalPoints: points[r.UserID],
		}
	}

	if err := h.cache.StoreRanking(ctx, series, ranking); err != nil {
		logger.Warn("failed to mirror ranking to cache", "error", err)
	}
}
