package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository for PostgreSQL.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

const entryColumns = `user_id, series, global_rank, national_rank, regional_rank,
	badge_count, streak, longest_streak, total_points, history,
	top_performance, most_improved, created_at, updated_at`

// rankingOrder must match leaderboard.Less; user ids compare bytewise.
const rankingOrder = `total_points DESC, badge_count DESC, streak DESC, user_id COLLATE "C" ASC`

// Get implements leaderboard.Repository.
func (r *LeaderboardRepository) Get(ctx context.Context, userID, series string) (*leaderboard.Entry, error) {
	row := r.conn.Pool().QueryRow(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries WHERE user_id = $1 AND series = $2`,
		userID, series)

	e, err := scanEntry(row)
	if IsNoRows(err) {
		return nil, shared.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	return e, nil
}

// GetOrCreate implements leaderboard.Repository. Concurrent first reads of
// the same key create exactly one row.
func (r *LeaderboardRepository) GetOrCreate(ctx context.Context, userID, series string, now time.Time) (*leaderboard.Entry, bool, error) {
	fresh := leaderboard.NewEntry(userID, series, now)
	history, err := json.Marshal(fresh.History)
	if err != nil {
		return nil, false, fmt.Errorf("encode history: %w", err)
	}

	row := r.conn.Pool().QueryRow(ctx, `
		INSERT INTO leaderboard_entries
			(user_id, series, global_rank, national_rank, regional_rank, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id, series) DO NOTHING
		RETURNING `+entryColumns,
		userID, series, fresh.GlobalRank, fresh.NationalRank, fresh.RegionalRank, history, now,
	)

	e, err := scanEntry(row)
	if err == nil {
		return e, true, nil
	}
	if !IsNoRows(err) {
		return nil, false, fmt.Errorf("create leaderboard entry: %w", err)
	}

	e, err = r.Get(ctx, userID, series)
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}

// Update implements leaderboard.Repository.
func (r *LeaderboardRepository) Update(ctx context.Context, userID, series string, mutate func(e *leaderboard.Entry) error) (*leaderboard.Entry, error) {
	var updated *leaderboard.Entry

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM leaderboard_entries WHERE user_id = $1 AND series = $2 FOR UPDATE`,
			userID, series)

		e, err := scanEntry(row)
		if IsNoRows(err) {
			return shared.ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("lock leaderboard entry: %w", err)
		}

		if err := mutate(e); err != nil {
			return err
		}

		history, err := json.Marshal(e.History)
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE leaderboard_entries SET
				global_rank = $3, national_rank = $4, regional_rank = $5,
				badge_count = $6, streak = $7, longest_streak = $8, total_points = $9,
				history = $10, top_performance = $11, most_improved = $12, updated_at = $13
			WHERE user_id = $1 AND series = $2`,
			e.UserID, e.Series, e.GlobalRank, e.NationalRank, e.RegionalRank,
			e.BadgeCount, e.Streak, e.LongestStreak, e.TotalPoints,
			history, e.TopPerformance, e.MostImproved, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update leaderboard entry: %w", err)
		}

		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListBySeries implements leaderboard.Repository.
func (r *LeaderboardRepository) ListBySeries(ctx context.Context, series string) ([]*leaderboard.Entry, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+entryColumns+` FROM leaderboard_entries WHERE series = $1 ORDER BY `+rankingOrder,
		series)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*leaderboard.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leaderboard entries: %w", err)
	}
	return entries, nil
}

// ApplyRanks implements leaderboard.Repository. All updates are sent as one
// batch inside one transaction; readers see either the old or the new
// ranking, never a mix.
func (r *LeaderboardRepository) ApplyRanks(ctx context.Context, series string, ranks []leaderboard.Assignment, now time.Time) (int, error) {
	if len(ranks) == 0 {
		return 0, nil
	}

	updated := 0
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range ranks {
			batch.Queue(`
				UPDATE leaderboard_entries
				SET global_rank = $3, top_performance = $4, updated_at = $5
				WHERE user_id = $1 AND series = $2`,
				a.UserID, series, a.GlobalRank, a.TopPerformance, now,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range ranks {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("apply rank: %w", err)
			}
			updated += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func scanEntry(row pgx.Row) (*leaderboard.Entry, error) {
	var e leaderboard.Entry
	var history []byte

	err := row.Scan(
		&e.UserID,
		&e.Series,
		&e.GlobalRank,
		&e.NationalRank,
		&e.RegionalRank,
		&e.BadgeCount,
		&e.Streak,
		&e.LongestStreak,
		&e.TotalPoints,
		&history,
		&e.TopPerformance,
		&e.MostImproved,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.History = []leaderboard.Snapshot{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &e.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
