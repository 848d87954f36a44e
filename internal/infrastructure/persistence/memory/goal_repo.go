package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// goalStore is the generic backing of the achievement and mission stores.
type goalStore[T goal.Trackable] struct {
	mu       sync.Mutex
	records  map[string]T
	clone    func(T) T
	notFound error
	conflict error
}

func newGoalStore[T goal.Trackable](clone func(T) T, notFound, conflict error) *goalStore[T] {
	return &goalStore[T]{
		records:  make(map[string]T),
		clone:    clone,
		notFound: notFound,
		conflict: conflict,
	}
}

func (s *goalStore[T]) create(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[v.GoalID()]; ok {
		return s.conflict
	}
	s.records[v.GoalID()] = s.clone(v)
	return nil
}

// Get returns a copy of the record.
func (s *goalStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.records[id]
	if !ok {
		var zero T
		return zero, s.notFound
	}
	return s.clone(v), nil
}

// ListByUser returns the records of a user ordered by ID.
func (s *goalStore[T]) ListByUser(ctx context.Context, userID string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0)
	for _, v := range s.records {
		if v.Owner() == userID {
			out = append(out, s.clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GoalID() < out[j].GoalID() })
	return out, nil
}

// Update mutates a working copy and stores it only when mutate succeeds.
func (s *goalStore[T]) Update(ctx context.Context, id string, mutate func(T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	v, ok := s.records[id]
	if !ok {
		return zero, s.notFound
	}

	working := s.clone(v)
	if err := mutate(working); err != nil {
		return zero, err
	}
	s.records[id] = working
	return s.clone(working), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository is an in-memory goal.AchievementRepository.
type AchievementRepository struct {
	*goalStore[*goal.Achievement]
}

// NewAchievementRepository creates an empty repository.
func NewAchievementRepository() *AchievementRepository {
	return &AchievementRepository{
		goalStore: newGoalStore(cloneAchievement, shared.ErrAchievementNotFound, shared.ErrAchievementIDConflict),
	}
}

// Create implements goal.AchievementRepository.
func (r *AchievementRepository) Create(ctx context.Context, a *goal.Achievement) error {
	return r.create(a)
}

func cloneAchievement(a *goal.Achievement) *goal.Achievement {
	c := *a
	c.Target = cloneTarget(a.Target)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// MissionRepository is an in-memory goal.MissionRepository.
type MissionRepository struct {
	*goalStore[*goal.Mission]
}

// NewMissionRepository creates an empty repository.
func NewMissionRepository() *MissionRepository {
	return &MissionRepository{
		goalStore: newGoalStore(cloneMission, shared.ErrMissionNotFound, shared.ErrConflict),
	}
}

// Create implements goal.MissionRepository.
func (r *MissionRepository) Create(ctx context.Context, m *goal.Mission) error {
	return r.create(m)
}

func cloneMission(m *goal.Mission) *goal.Mission {
	c := *m
	c.Target = cloneTarget(m.Target)
	return &c
}

func cloneTarget(t goal.Target) goal.Target {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}
