package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements goal.AchievementRepository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

const achievementColumns = `id, user_id, code, title, progress, target, completed, completed_at, created_at, updated_at`

// Create implements goal.AchievementRepository.
func (r *AchievementRepository) Create(ctx context.Context, a *goal.Achievement) error {
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.Code, a.Title,
		a.Target.Progress, a.Target.Goal, a.Target.Completed, a.Target.CompletedAt,
		a.CreatedAt, a.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return shared.ErrAchievementIDConflict
	}
	if err != nil {
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}

// Get implements goal.Store.
func (r *AchievementRepository) Get(ctx context.Context, id string) (*goal.Achievement, error) {
	a, err := scanAchievement(r.conn.Pool().QueryRow(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.ErrAchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get achievement: %w", err)
	}
	return a, nil
}

// ListByUser implements goal.Store.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*goal.Achievement, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	out := make([]*goal.Achievement, 0)
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update implements goal.Store.
func (r *AchievementRepository) Update(ctx context.Context, id string, mutate func(*goal.Achievement) error) (*goal.Achievement, error) {
	var updated *goal.Achievement

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		a, err := scanAchievement(tx.QueryRow(ctx,
			`SELECT `+achievementColumns+` FROM achievements WHERE id = $1 FOR UPDATE`, id))
		if IsNoRows(err) {
			return shared.ErrAchievementNotFound
		}
		if err != nil {
			return fmt.Errorf("lock achievement: %w", err)
		}

		if err := mutate(a); err != nil {
			return err
		}

		if err := writeTarget(ctx, tx, "achievements", a.ID, a.Target, a.UpdatedAt); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func scanAchievement(row pgx.Row) (*goal.Achievement, error) {
	var a goal.Achievement
	err := row.Scan(
		&a.ID, &a.UserID, &a.Code, &a.Title,
		&a.Target.Progress, &a.Target.Goal, &a.Target.Completed, &a.Target.CompletedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeTarget(&a.Target)
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MissionRepository implements goal.MissionRepository for PostgreSQL.
type MissionRepository struct {
	conn *Connection
}

// NewMissionRepository creates a new MissionRepository.
func NewMissionRepository(conn *Connection) *MissionRepository {
	return &MissionRepository{conn: conn}
}

const missionColumns = `id, user_id, code, title, progress, target, completed, completed_at, expires_at, created_at, updated_at`

// Create implements goal.MissionRepository.
func (r *MissionRepository) Create(ctx context.Context, m *goal.Mission) error {
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO missions (`+missionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.UserID, m.Code, m.Title,
		m.Target.Progress, m.Target.Goal, m.Target.Completed, m.Target.CompletedAt,
		m.ExpiresAt, m.CreatedAt, m.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("goal", "CreateMission", shared.ErrConflict, "mission id already exists")
	}
	if err != nil {
		return fmt.Errorf("create mission: %w", err)
	}
	return nil
}

// Get implements goal.Store.
func (r *MissionRepository) Get(ctx context.Context, id string) (*goal.Mission, error) {
	m, err := scanMission(r.conn.Pool().QueryRow(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return m, nil
}

// ListByUser implements goal.Store.
func (r *MissionRepository) ListByUser(ctx context.Context, userID string) ([]*goal.Mission, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	out := make([]*goal.Mission, 0)
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Update implements goal.Store.
func (r *MissionRepository) Update(ctx context.Context, id string, mutate func(*goal.Mission) error) (*goal.Mission, error) {
	var updated *goal.Mission

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		m, err := scanMission(tx.QueryRow(ctx,
			`SELECT `+missionColumns+` FROM missions WHERE id = $1 FOR UPDATE`, id))
		if IsNoRows(err) {
			return shared.ErrMissionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock mission: %w", err)
		}

		if err := mutate(m); err != nil {
			return err
		}

		if err := writeTarget(ctx, tx, "missions", m.ID, m.Target, m.UpdatedAt); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func scanMission(row pgx.Row) (*goal.Mission, error) {
	var m goal.Mission
	err := row.Scan(
		&m.ID, &m.UserID, &m.Code, &m.Title,
		&m.Target.Progress, &m.Target.Goal, &m.Target.Completed, &m.Target.CompletedAt,
		&m.ExpiresAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeTarget(&m.Target)
	m.ExpiresAt = m.ExpiresAt.UTC()
	m.CreatedAt, m.UpdatedAt = m.CreatedAt.UTC(), m.UpdatedAt.UTC()
	return &m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED
// ══════════════════════════════════════════════════════════════════════════════

// writeTarget persists the mutable target columns. Only the progress state
// changes after creation.
func writeTarget(ctx context.Context, tx pgx.Tx, table, id string, t goal.Target, updatedAt time.Time) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET progress = $2, completed = $3, completed_at = $4, updated_at = $5
		WHERE id = $1`, table),
		id, t.Progress, t.Completed, t.CompletedAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func normalizeTarget(t *goal.Target) {
	if t.CompletedAt != nil {
		at := t.CompletedAt.UTC()
		t.CompletedAt = &at
	}
}
