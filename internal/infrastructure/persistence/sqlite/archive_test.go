package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/progress"
)

func openMemory(t *testing.T) *SessionArchive {
	t.Helper()
	a, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func sessionsFrom(start time.Time, scores ...float64) []progress.PracticeSession {
	out := make([]progress.PracticeSession, len(scores))
	for i, s := range scores {
		out[i] = progress.PracticeSession{
			Seq:       i + 1,
			Date:      start.Add(time.Duration(i) * time.Hour),
			Score:     s,
			TimeSpent: 20 * time.Minute,
		}
	}
	return out
}

func TestSessionArchive_AppendAndList(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, a.Append(ctx, "u1", "algebra", sessionsFrom(start, 40, 55, 70)))

	got, err := a.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 40.0, got[0].Score)
	assert.Equal(t, 70.0, got[2].Score)
	assert.True(t, got[0].Date.Equal(start))
	assert.Equal(t, 20*time.Minute, got[1].TimeSpent)

	other, err := a.List(ctx, "u1", "geometry")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSessionArchive_AppendIsIdempotent(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	batch := sessionsFrom(start, 10, 20)

	require.NoError(t, a.Append(ctx, "u1", "algebra", batch))
	require.NoError(t, a.Append(ctx, "u1", "algebra", batch))
	require.NoError(t, a.Append(ctx, "u1", "algebra", nil))

	got, err := a.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	n, err := a.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSessionArchive_ListOrdersByDate(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, a.Append(ctx, "u1", "algebra", sessionsFrom(start.Add(48*time.Hour), 90)))
	require.NoError(t, a.Append(ctx, "u1", "algebra", sessionsFrom(start, 30)))

	got, err := a.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 30.0, got[0].Score)
	assert.Equal(t, 90.0, got[1].Score)
}

func TestSessionArchive_KeepsFractionalScores(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, a.Append(ctx, "u1", "algebra", sessionsFrom(start, 72.5, 88.25, 0.1)))

	got, err := a.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 72.5, got[0].Score)
	assert.Equal(t, 88.25, got[1].Score)
	assert.InDelta(t, 0.1, got[2].Score, 1e-12)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Seq, got[1].Seq, got[2].Seq})
}

func TestSessionArchive_SameInstantSessionsAreKept(t *testing.T) {
	a := openMemory(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	batch := []progress.PracticeSession{
		{Seq: 7, Date: at, Score: 61},
		{Seq: 8, Date: at, Score: 64.5},
	}

	require.NoError(t, a.Append(ctx, "u1", "algebra", batch))
	require.NoError(t, a.Append(ctx, "u1", "algebra", batch[1:]))

	got, err := a.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 61.0, got[0].Score)
	assert.Equal(t, 64.5, got[1].Score)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	a, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.FileExists(t, path)
}
