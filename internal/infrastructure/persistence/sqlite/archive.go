// Package sqlite stores archived practice sessions in a local SQLite file.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/studyquest/progress-engine/internal/domain/progress"
)

// Config holds archive database settings.
type Config struct {
	// Path is the database file. ":memory:" keeps the archive in process.
	Path string
}

// DefaultConfig returns the default archive location.
func DefaultConfig() Config {
	return Config{Path: filepath.Join("data", "session_archive.db")}
}

// SessionArchive implements progress.SessionArchive. Rows are keyed by
// (user, topic, date, seq) so re-archiving a session is a no-op while two
// sessions stamped with the same instant are both kept.
type SessionArchive struct {
	db *sqlx.DB
}

type sessionRow struct {
	UserID      string  `db:"user_id"`
	TopicID     string  `db:"topic_id"`
	DateNanos   int64   `db:"date_ns"`
	Seq         int     `db:"seq"`
	Score       float64 `db:"score"`
	TimeSpentNs int64   `db:"time_spent_ns"`
}

// Open connects to the archive database and creates its schema.
func Open(cfg Config) (*SessionArchive, error) {
	if cfg.Path == "" {
		cfg = DefaultConfig()
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}

	// Single writer; also keeps one shared connection for ":memory:".
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a := &SessionArchive{db: db}
	if err := a.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the database connection.
func (a *SessionArchive) Close() error {
	return a.db.Close()
}

// Ping checks the database file is still usable.
func (a *SessionArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SessionArchive) initializeSchema() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS archived_sessions (
			user_id TEXT NOT NULL,
			topic_id TEXT NOT NULL,
			date_ns INTEGER NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			score REAL NOT NULL,
			time_spent_ns INTEGER NOT NULL,
			archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, topic_id, date_ns, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("create archived_sessions table: %w", err)
	}
	return nil
}

// Append implements progress.SessionArchive.
func (a *SessionArchive) Append(ctx context.Context, userID, topicID string, sessions []progress.PracticeSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT OR IGNORE INTO archived_sessions (user_id, topic_id, date_ns, seq, score, time_spent_ns)
		VALUES (:user_id, :topic_id, :date_ns, :seq, :score, :time_spent_ns)
	`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sessions {
		row := sessionRow{
			UserID:      userID,
			TopicID:     topicID,
			DateNanos:   s.Date.UTC().UnixNano(),
			Seq:         s.Seq,
			Score:       s.Score,
			TimeSpentNs: int64(s.TimeSpent),
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// List implements progress.SessionArchive, oldest first.
func (a *SessionArchive) List(ctx context.Context, userID, topicID string) ([]progress.PracticeSession, error) {
	var rows []sessionRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT user_id, topic_id, date_ns, seq, score, time_spent_ns
		FROM archived_sessions
		WHERE user_id = ? AND topic_id = ?
		ORDER BY date_ns ASC, seq ASC
	`, userID, topicID)
	if err != nil {
		return nil, fmt.Errorf("list archived sessions: %w", err)
	}

	out := make([]progress.PracticeSession, len(rows))
	for i, r := range rows {
		out[i] = progress.PracticeSession{
			Seq:       r.Seq,
			Date:      time.Unix(0, r.DateNanos).UTC(),
			Score:     r.Score,
			TimeSpent: time.Duration(r.TimeSpentNs),
		}
	}
	return out, nil
}

// Count returns how many sessions are archived for a user across topics.
func (a *SessionArchive) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := a.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM archived_sessions WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("count archived sessions: %w", err)
	}
	return n, nil
}
