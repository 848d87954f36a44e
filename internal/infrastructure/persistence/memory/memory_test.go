package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestProgressRepository_UpsertCreatesAndReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()

	_, err := repo.Get(ctx, "u1", "algebra")
	assert.True(t, errors.Is(err, shared.ErrTopicProgressNotFound))

	saved, err := repo.Upsert(ctx, "u1", "algebra", func(p *progress.TopicProgress) error {
		_, err := p.RecordSession(progress.SessionInput{Score: 70, TimeSpent: time.Minute, WeakAreas: []string{"fractions"}}, now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.TotalSessions)

	saved.WeakAreas[0] = "mutated"
	saved.PracticeSessions[0].Score = 0

	got, err := repo.Get(ctx, "u1", "algebra")
	require.NoError(t, err)
	assert.Equal(t, progress.LabelSet{"fractions"}, got.WeakAreas)
	assert.Equal(t, 70.0, got.PracticeSessions[0].Score)
}

func TestProgressRepository_FailedMutateStoresNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()

	_, err := repo.Upsert(ctx, "u1", "algebra", func(p *progress.TopicProgress) error {
		p.TotalSessions = 99
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = repo.Get(ctx, "u1", "algebra")
	assert.True(t, errors.Is(err, shared.ErrTopicProgressNotFound))
}

func TestProgressRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository()
	noop := func(*progress.TopicProgress) error { return nil }

	for _, topic := range []string{"geometry", "algebra"} {
		_, err := repo.Upsert(ctx, "u1", topic, noop)
		require.NoError(t, err)
	}
	_, err := repo.Upsert(ctx, "u2", "algebra", noop)
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "algebra", list[0].TopicID)
	assert.Equal(t, "geometry", list[1].TopicID)
}

func TestSessionArchive_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	archive := NewSessionArchive()

	batch := []progress.PracticeSession{
		{Date: now.Add(time.Hour), Score: 60},
		{Date: now, Score: 50},
	}
	require.NoError(t, archive.Append(ctx, "u1", "algebra", batch))
	require.NoError(t, archive.Append(ctx, "u1", "algebra", batch[:1]))

	got, err := archive.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 50.0, got[0].Score)
	assert.Equal(t, 60.0, got[1].Score)
}

func TestSessionArchive_SameInstantSessionsAreKept(t *testing.T) {
	ctx := context.Background()
	archive := NewSessionArchive()

	batch := []progress.PracticeSession{
		{Seq: 3, Date: now, Score: 70},
		{Seq: 4, Date: now, Score: 72.5},
	}
	require.NoError(t, archive.Append(ctx, "u1", "algebra", batch))
	require.NoError(t, archive.Append(ctx, "u1", "algebra", batch))

	got, err := archive.List(ctx, "u1", "algebra")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Seq)
	assert.Equal(t, 72.5, got[1].Score)
}

func TestAchievementRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAchievementRepository()

	a, err := goal.NewAchievement("a1", "u1", "quizzes-50", "Finish 50 quizzes", 50, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, a))
	assert.True(t, errors.Is(repo.Create(ctx, a), shared.ErrAchievementIDConflict))

	_, err = repo.Update(ctx, "a1", func(a *goal.Achievement) error {
		_, err := a.UpdateProgress(-1, now)
		return err
	})
	require.Error(t, err)

	updated, err := repo.Update(ctx, "a1", func(a *goal.Achievement) error {
		_, err := a.UpdateProgress(80, now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Target.Progress)
	assert.True(t, updated.Target.Completed)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, shared.ErrAchievementNotFound))

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].Target.CompletedAt)
}

func TestMissionRepository_UpdateMissing(t *testing.T) {
	repo := NewMissionRepository()
	_, err := repo.Update(context.Background(), "m1", func(*goal.Mission) error { return nil })
	assert.True(t, errors.Is(err, shared.ErrMissionNotFound))
}

func TestLeaderboardRepository_GetOrCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaderboardRepository()

	_, err := repo.Update(ctx, "u1", "", func(*leaderboard.Entry) error { return nil })
	assert.True(t, errors.Is(err, shared.ErrEntryNotFound))

	e, created, err := repo.GetOrCreate(ctx, "u1", "", now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, leaderboard.Unranked, e.GlobalRank)

	_, created, err = repo.GetOrCreate(ctx, "u1", "", now)
	require.NoError(t, err)
	assert.False(t, created)

	points := 300
	updated, err := repo.Update(ctx, "u1", "", func(e *leaderboard.Entry) error {
		return e.Apply(leaderboard.RankUpdate{TotalPoints: &points}, now)
	})
	require.NoError(t, err)
	assert.Equal(t, 300, updated.TotalPoints)
	assert.Len(t, updated.History, 1)
}

func TestLeaderboardRepository_ApplyRanksTouchesOnlyRank(t *testing.T) {
	ctx := context.Background()
	repo := NewLeaderboardRepository()

	for _, id := range []string{"a", "b"} {
		_, _, err := repo.GetOrCreate(ctx, id, "spring", now)
		require.NoError(t, err)
	}
	_, _, err := repo.GetOrCreate(ctx, "a", "", now)
	require.NoError(t, err)

	n, err := repo.ApplyRanks(ctx, "spring", []leaderboard.Assignment{
		{UserID: "a", GlobalRank: 1, TopPerformance: true},
		{UserID: "b", GlobalRank: 2, TopPerformance: true},
		{UserID: "gone", GlobalRank: 3, TopPerformance: true},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := repo.Get(ctx, "a", "spring")
	require.NoError(t, err)
	assert.Equal(t, 1, a.GlobalRank)
	assert.Empty(t, a.History)

	other, err := repo.Get(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Unranked, other.GlobalRank)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	unlock, err := l.Lock(ctx, "leaderboard:recalc:default")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "leaderboard:recalc:default")
	assert.True(t, errors.Is(err, shared.ErrRecalculationInProgress))

	other, err := l.Lock(ctx, "leaderboard:recalc:spring")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))

	again, err := l.Lock(ctx, "leaderboard:recalc:default")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
