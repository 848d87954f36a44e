package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in a tracking table.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Pool().Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Pool().Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status reports which migrations are applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_topic_progress", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_goals", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_leaderboard_entries", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: TOPIC PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS topic_progress (
    user_id TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    mastery_level TEXT NOT NULL DEFAULT 'beginner',
    time_spent_ns BIGINT NOT NULL DEFAULT 0,
    -- Hot window of the most recent sessions, oldest first.
    practice_sessions JSONB NOT NULL DEFAULT '[]'::jsonb,
    total_sessions INTEGER NOT NULL DEFAULT 0,
    weak_areas TEXT[] NOT NULL DEFAULT '{}',
    strong_areas TEXT[] NOT NULL DEFAULT '{}',
    last_studied TIMESTAMPTZ,
    study_streak INTEGER NOT NULL DEFAULT 0,
    longest_study_streak INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, topic_id),
    CONSTRAINT valid_mastery_level CHECK (mastery_level IN ('beginner', 'intermediate', 'advanced', 'mastered')),
    CONSTRAINT valid_time_spent CHECK (time_spent_ns >= 0),
    CONSTRAINT valid_total_sessions CHECK (total_sessions >= 0),
    CONSTRAINT valid_streak CHECK (longest_study_streak >= study_streak)
);

CREATE INDEX IF NOT EXISTS idx_topic_progress_user ON topic_progress(user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS topic_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACHIEVEMENTS AND MISSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    code TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    progress INTEGER NOT NULL DEFAULT 0,
    target INTEGER NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_achievement_target CHECK (target > 0),
    CONSTRAINT valid_achievement_progress CHECK (progress >= 0 AND progress <= target)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);

CREATE TABLE IF NOT EXISTS missions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    code TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    progress INTEGER NOT NULL DEFAULT 0,
    target INTEGER NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMPTZ,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_mission_target CHECK (target > 0),
    CONSTRAINT valid_mission_progress CHECK (progress >= 0 AND progress <= target)
);

CREATE INDEX IF NOT EXISTS idx_missions_user ON missions(user_id);
CREATE INDEX IF NOT EXISTS idx_missions_active ON missions(expires_at) WHERE NOT completed;
`

const migration002Down = `
DROP TABLE IF EXISTS missions;
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LEADERBOARD ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS leaderboard_entries (
    user_id TEXT NOT NULL,
    -- Empty string is the default series.
    series TEXT NOT NULL DEFAULT '',
    global_rank INTEGER NOT NULL DEFAULT 999999,
    national_rank INTEGER NOT NULL DEFAULT 999999,
    regional_rank INTEGER NOT NULL DEFAULT 999999,
    badge_count INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    total_points INTEGER NOT NULL DEFAULT 0,
    -- Last 30 (rank, points) snapshots, oldest first.
    history JSONB NOT NULL DEFAULT '[]'::jsonb,
    top_performance BOOLEAN NOT NULL DEFAULT FALSE,
    most_improved BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, series),
    CONSTRAINT valid_ranks CHECK (global_rank >= 1 AND national_rank >= 1 AND regional_rank >= 1),
    CONSTRAINT valid_counters CHECK (badge_count >= 0 AND streak >= 0 AND total_points >= 0),
    CONSTRAINT valid_longest_streak CHECK (longest_streak >= streak)
);

-- Matches the ranking order used by recalculation.
CREATE INDEX IF NOT EXISTS idx_leaderboard_ranking
    ON leaderboard_entries(series, total_points DESC, badge_count DESC, streak DESC, user_id);
`

const migration003Down = `
DROP TABLE IF EXISTS leaderboard_entries;
`
