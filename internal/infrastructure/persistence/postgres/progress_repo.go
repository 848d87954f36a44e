package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const topicColumns = `user_id, topic_id, mastery_level, time_spent_ns, practice_sessions,
	total_sessions, weak_areas, strong_areas, last_studied, study_streak,
	longest_study_streak, created_at, updated_at`

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID, topicID string) (*progress.TopicProgress, error) {
	row := r.conn.Pool().QueryRow(ctx,
		`SELECT `+topicColumns+` FROM topic_progress WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID)

	p, err := scanTopic(row)
	if IsNoRows(err) {
		return nil, shared.ErrTopicProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic progress: %w", err)
	}
	return p, nil
}

// ListByUser implements progress.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*progress.TopicProgress, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+topicColumns+` FROM topic_progress WHERE user_id = $1 ORDER BY topic_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list topic progress: %w", err)
	}
	defer rows.Close()

	out := make([]*progress.TopicProgress, 0)
	for rows.Next() {
		p, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert implements progress.Repository. The row is created empty when
// missing, then locked for the rest of the transaction so concurrent
// sessions on one topic are applied one after another.
func (r *ProgressRepository) Upsert(ctx context.Context, userID, topicID string, mutate func(p *progress.TopicProgress) error) (*progress.TopicProgress, error) {
	var saved *progress.TopicProgress

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO topic_progress (user_id, topic_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, topic_id) DO NOTHING`,
			userID, topicID,
		); err != nil {
			return fmt.Errorf("ensure topic progress: %w", err)
		}

		row := tx.QueryRow(ctx,
			`SELECT `+topicColumns+` FROM topic_progress WHERE user_id = $1 AND topic_id = $2 FOR UPDATE`,
			userID, topicID)
		p, err := scanTopic(row)
		if err != nil {
			return fmt.Errorf("lock topic progress: %w", err)
		}
		if p.TotalSessions == 0 {
			// Row was just created by the insert above; stamps come from mutate.
			p.CreatedAt = time.Time{}
		}

		if err := mutate(p); err != nil {
			return err
		}

		sessions, err := json.Marshal(p.PracticeSessions)
		if err != nil {
			return fmt.Errorf("encode sessions: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE topic_progress SET
				mastery_level = $3, time_spent_ns = $4, practice_sessions = $5,
				total_sessions = $6, weak_areas = $7, strong_areas = $8, last_studied = $9,
				study_streak = $10, longest_study_streak = $11, created_at = $12, updated_at = $13
			WHERE user_id = $1 AND topic_id = $2`,
			p.UserID, p.TopicID, string(p.MasteryLevel), int64(p.TimeSpent), sessions,
			p.TotalSessions, []string(p.WeakAreas), []string(p.StrongAreas), p.LastStudied,
			p.StudyStreak, p.LongestStudyStreak, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update topic progress: %w", err)
		}

		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func scanTopic(row pgx.Row) (*progress.TopicProgress, error) {
	var (
		p           progress.TopicProgress
		level       string
		timeSpent   int64
		sessions    []byte
		weakAreas   []string
		strongAreas []string
		lastStudied *time.Time
	)

	err := row.Scan(
		&p.UserID,
		&p.TopicID,
		&level,
		&timeSpent,
		&sessions,
		&p.TotalSessions,
		&weakAreas,
		&strongAreas,
		&lastStudied,
		&p.StudyStreak,
		&p.LongestStudyStreak,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.MasteryLevel, err = progress.ParseMasteryLevel(level); err != nil {
		return nil, fmt.Errorf("decode topic %s/%s: %w", p.UserID, p.TopicID, err)
	}
	p.TimeSpent = time.Duration(timeSpent)
	p.WeakAreas = progress.LabelSet(weakAreas)
	p.StrongAreas = progress.LabelSet(strongAreas)
	if lastStudied != nil {
		t := lastStudied.UTC()
		p.LastStudied = &t
	}
	if len(sessions) > 0 {
		if err := json.Unmarshal(sessions, &p.PracticeSessions); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
