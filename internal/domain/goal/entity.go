package goal

import (
	"time"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Achievement is a long-lived goal such as "finish 50 quizzes".
type Achievement struct {
	ID        string
	UserID    string
	Code      string
	Title     string
	Target    Target
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAchievement creates an achievement with zero progress.
func NewAchievement(id, userID, code, title string, goal int, now time.Time) (*Achievement, error) {
	if id == "" || userID == "" {
		return nil, shared.NewDomainError("goal", "NewAchievement", shared.ErrEmptyValue, "id and user are required")
	}
	target, err := NewTarget(goal)
	if err != nil {
		return nil, err
	}
	return &Achievement{
		ID:        id,
		UserID:    userID,
		Code:      code,
		Title:     title,
		Target:    target,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (a *Achievement) GoalID() string      { return a.ID }
func (a *Achievement) Owner() string       { return a.UserID }
func (a *Achievement) Kind() Kind          { return KindAchievement }
func (a *Achievement) TargetState() Target { return a.Target }

// UpdateProgress applies the generic target rules with no extra gates.
func (a *Achievement) UpdateProgress(newProgress int, now time.Time) (bool, error) {
	completed, err := a.Target.Apply(newProgress, now)
	if err != nil {
		return false, err
	}
	a.UpdatedAt = now
	return completed, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSION
// ══════════════════════════════════════════════════════════════════════════════

// Mission is a time-boxed goal. It cannot be updated after it is completed
// or after ExpiresAt.
type Mission struct {
	ID        string
	UserID    string
	Code      string
	Title     string
	Target    Target
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMission creates a mission with zero progress.
func NewMission(id, userID, code, title string, goal int, expiresAt, now time.Time) (*Mission, error) {
	if id == "" || userID == "" {
		return nil, shared.NewDomainError("goal", "NewMission", shared.ErrEmptyValue, "id and user are required")
	}
	if !expiresAt.After(now) {
		return nil, shared.ValidationError("goal", "NewMission", "expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}
	target, err := NewTarget(goal)
	if err != nil {
		return nil, err
	}
	return &Mission{
		ID:        id,
		UserID:    userID,
		Code:      code,
		Title:     title,
		Target:    target,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (m *Mission) GoalID() string      { return m.ID }
func (m *Mission) Owner() string       { return m.UserID }
func (m *Mission) Kind() Kind          { return KindMission }
func (m *Mission) TargetState() Target { return m.Target }

// IsExpired reports whether now is past the expiry.
func (m *Mission) IsExpired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// IsActive reports whether the mission still accepts progress.
func (m *Mission) IsActive(now time.Time) bool {
	return !m.Target.Completed && !m.IsExpired(now)
}

// UpdateProgress applies the generic target rules after the mission gates.
func (m *Mission) UpdateProgress(newProgress int, now time.Time) (bool, error) {
	if m.Target.Completed {
		return false, shared.ErrMissionCompleted
	}
	if m.IsExpired(now) {
		return false, shared.ErrMissionExpired
	}
	completed, err := m.Target.Apply(newProgress, now)
	if err != nil {
		return false, err
	}
	m.UpdatedAt = now
	return completed, nil
}
