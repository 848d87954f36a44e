package goal

import (
	"context"
)

// Store is the read-modify-write contract shared by achievement and mission
// repositories. Update applies mutate to the stored record atomically and
// persists nothing when mutate fails.
type Store[T Trackable] interface {
	Get(ctx context.Context, id string) (T, error)
	ListByUser(ctx context.Context, userID string) ([]T, error)
	Update(ctx context.Context, id string, mutate func(T) error) (T, error)
}

// AchievementRepository persists achievements.
type AchievementRepository interface {
	Store[*Achievement]

	// Create stores a new achievement. A duplicate ID returns
	// shared.ErrAchievementIDConflict.
	Create(ctx context.Context, a *Achievement) error
}

// MissionRepository persists missions.
type MissionRepository interface {
	Store[*Mission]

	// Create stores a new mission.
	Create(ctx context.Context, m *Mission) error
}
