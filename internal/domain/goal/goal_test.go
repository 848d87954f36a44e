package goal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestTarget_ApplyClamps(t *testing.T) {
	for _, goalValue := range []int{1, 3, 10, 250} {
		for _, progress := range []int{0, 1, 2, 9, 10, 11, 1000} {
			target, err := NewTarget(goalValue)
			require.NoError(t, err)

			_, err = target.Apply(progress, now)
			require.NoError(t, err)

			expected := progress
			if expected > goalValue {
				expected = goalValue
			}
			assert.Equal(t, expected, target.Progress, "goal=%d progress=%d", goalValue, progress)
			assert.Equal(t, progress >= goalValue, target.Completed)
		}
	}
}

func TestTarget_ApplyRejectsNegative(t *testing.T) {
	target, _ := NewTarget(5)
	_, err := target.Apply(-1, now)

	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Equal(t, 0, target.Progress)
}

func TestNewTarget_RejectsNonPositiveGoal(t *testing.T) {
	_, err := NewTarget(0)
	assert.True(t, shared.IsValidation(err))
}

func TestTarget_CompletionIsStampedOnce(t *testing.T) {
	target, _ := NewTarget(3)

	completed, err := target.Apply(3, now)
	require.NoError(t, err)
	assert.True(t, completed)
	require.NotNil(t, target.CompletedAt)
	stamped := *target.CompletedAt

	for _, v := range []int{3, 3, 1, 0, 7} {
		completed, err = target.Apply(v, now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, completed)
		assert.Equal(t, stamped, *target.CompletedAt)
		assert.Equal(t, 3, target.Progress)
		assert.True(t, target.Completed)
	}
}

func TestAchievement_UpdateProgress(t *testing.T) {
	a, err := NewAchievement("a1", "u1", "quiz_50", "Quiz Marathon", 50, now)
	require.NoError(t, err)

	completed, err := a.UpdateProgress(75, now)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, 50, a.Target.Progress)
	assert.Equal(t, 0, a.Target.Remaining())
	assert.Equal(t, 1.0, a.Target.Ratio())

	// Achievements have no completion gate.
	completed, err = a.UpdateProgress(10, now.Add(time.Minute))
	assert.NoError(t, err)
	assert.False(t, completed)
}

func TestMission_Scenario(t *testing.T) {
	m, err := NewMission("m1", "u1", "weekly", "Weekly practice", 10, now.Add(24*time.Hour), now)
	require.NoError(t, err)
	_, err = m.UpdateProgress(8, now)
	require.NoError(t, err)

	completed, err := m.UpdateProgress(9, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 9, m.Target.Progress)
	assert.False(t, m.Target.Completed)

	completed, err = m.UpdateProgress(10, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, completed)
	assert.True(t, m.Target.Completed)
	require.NotNil(t, m.Target.CompletedAt)
	assert.Equal(t, now.Add(2*time.Minute), *m.Target.CompletedAt)

	_, err = m.UpdateProgress(5, now.Add(3*time.Minute))
	assert.True(t, errors.Is(err, shared.ErrAlreadyCompleted))
	assert.Equal(t, 10, m.Target.Progress)
}

func TestMission_Expired(t *testing.T) {
	m, err := NewMission("m1", "u1", "daily", "Daily practice", 3, now.Add(time.Hour), now)
	require.NoError(t, err)

	_, err = m.UpdateProgress(1, now.Add(time.Hour))
	assert.NoError(t, err, "expiry instant itself is still open")

	_, err = m.UpdateProgress(2, now.Add(time.Hour+time.Second))
	assert.True(t, errors.Is(err, shared.ErrExpired))
	assert.Equal(t, 1, m.Target.Progress)
	assert.False(t, m.IsActive(now.Add(2*time.Hour)))
}

func TestNewMission_RequiresFutureExpiry(t *testing.T) {
	_, err := NewMission("m1", "u1", "daily", "Daily", 3, now, now)
	assert.True(t, shared.IsValidation(err))
}

func TestTrackable(t *testing.T) {
	a, _ := NewAchievement("a1", "u1", "c", "t", 2, now)
	m, _ := NewMission("m1", "u2", "c", "t", 2, now.Add(time.Hour), now)

	for _, tr := range []Trackable{a, m} {
		assert.NotEmpty(t, tr.GoalID())
		assert.NotEmpty(t, tr.Owner())
		assert.Equal(t, 2, tr.TargetState().Goal)
	}
	assert.Equal(t, KindAchievement, a.Kind())
	assert.Equal(t, KindMission, m.Kind())
}
