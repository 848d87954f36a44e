// Package jobs contains the scheduled jobs of the progress engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/studyquest/progress-engine/internal/application/command"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE RANKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RankRecalculator runs one recalculation. Satisfied by
// *command.RecalculateRanksHandler.
type RankRecalculator interface {
	Handle(ctx context.Context, cmd command.RecalculateRanksCommand) (*command.RecalculateRanksResult, error)
}

// RecalculateRanksJob periodically recalculates the ranking of every
// configured series.
type RecalculateRanksJob struct {
	recalculator RankRecalculator
	logger       *slog.Logger
	config       RecalculateRanksConfig

	lastStats atomic.Value // *RecalculateStats
}

// RecalculateRanksConfig contains configuration for the job.
type RecalculateRanksConfig struct {
	// Series lists the series to recalculate. The default series is "".
	Series []string

	// Timeout bounds a whole run across all series.
	Timeout time.Duration
}

// DefaultRecalculateRanksConfig returns sensible defaults.
func DefaultRecalculateRanksConfig() RecalculateRanksConfig {
	return RecalculateRanksConfig{
		Series:  []string{""},
		Timeout: 5 * time.Minute,
	}
}

// RecalculateStats contains statistics from one run.
type RecalculateStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	SeriesProcessed  int
	SeriesSkipped    int
	EntriesRewritten int
	Errors           []error
}

// NewRecalculateRanksJob creates the job.
func NewRecalculateRanksJob(recalculator RankRecalculator, logger *slog.Logger, config RecalculateRanksConfig) *RecalculateRanksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Series) == 0 {
		config.Series = []string{""}
	}
	return &RecalculateRanksJob{
		recalculator: recalculator,
		logger:       logger,
		config:       config,
	}
}

// Name returns the job name.
func (j *RecalculateRanksJob) Name() string {
	return "recalculate_ranks"
}

// Description returns a human-readable description.
func (j *RecalculateRanksJob) Description() string {
	return "Recomputes dense global ranks and top-performer flags for every series"
}

// Run executes the job. A series whose recalculation is already running
// elsewhere is skipped, not failed.
func (j *RecalculateRanksJob) Run(ctx context.Context) error {
	stats := &RecalculateStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	for _, series := range j.config.Series {
		if err := ctx.Err(); err != nil {
			stats.Errors = append(stats.Errors, err)
			break
		}

		res, err := j.recalculator.Handle(ctx, command.RecalculateRanksCommand{Series: series})
		switch {
		case errors.Is(err, shared.ErrRecalculationInProgress):
			stats.SeriesSkipped++
			j.logger.Info("recalculation already running, skipping series", "series", series)
		case err != nil:
			stats.Errors = append(stats.Errors, fmt.Errorf("series %q: %w", series, err))
			j.logger.Error("failed to recalculate series", "series", series, "error", err)
		default:
			stats.SeriesProcessed++
			stats.EntriesRewritten += res.UpdatedCount
		}
	}

	j.logger.Info("recalculate_ranks job completed",
		"series_processed", stats.SeriesProcessed,
		"series_skipped", stats.SeriesSkipped,
		"entries_rewritten", stats.EntriesRewritten,
		"errors", len(stats.Errors),
	)

	return errors.Join(stats.Errors...)
}

// LastStats returns statistics from the last run, or nil before the first.
func (j *RecalculateRanksJob) LastStats() *RecalculateStats {
	stats, _ := j.lastStats.Load().(*RecalculateStats)
	return stats
}
