package command

import (
	"context"
	"fmt"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE GOAL PROGRESS COMMAND
// Sets the absolute progress of an achievement or mission. Both kinds share
// the clamping and completion rules; missions additionally reject updates once
// completed or expired.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateGoalProgressCommand contains the new absolute progress of a goal.
type UpdateGoalProgressCommand struct {
	GoalID   string
	Progress int
}

// Validate validates the command.
func (c UpdateGoalProgressCommand) Validate() error {
	if c.GoalID == "" {
		return shared.ValidationError("goal", "UpdateProgress", "goal_id is required")
	}
	if c.Progress < 0 {
		return shared.ErrNegativeProgress
	}
	return nil
}

// UpdateGoalProgressResult is returned to the caller, who decides whether
// the completion deserves a notification or reward.
type UpdateGoalProgressResult[T goal.Trackable] struct {
	Goal            T
	BecameCompleted bool
}

// UpdateGoalProgressHandler handles UpdateGoalProgressCommand for one goal kind.
type UpdateGoalProgressHandler[T goal.Trackable] struct {
	store goal.Store[T]
	handlerOptions
}

// NewUpdateGoalProgressHandler creates a handler over any goal store.
func NewUpdateGoalProgressHandler[T goal.Trackable](store goal.Store[T], opts ...Option) *UpdateGoalProgressHandler[T] {
	return &UpdateGoalProgressHandler[T]{
		store:          store,
		handlerOptions: buildOptions(opts),
	}
}

// NewUpdateAchievementProgressHandler creates the achievement handler.
func NewUpdateAchievementProgressHandler(repo goal.AchievementRepository, opts ...Option) *UpdateGoalProgressHandler[*goal.Achievement] {
	return NewUpdateGoalProgressHandler[*goal.Achievement](repo, opts...)
}

// NewUpdateMissionProgressHandler creates the mission handler.
func NewUpdateMissionProgressHandler(repo goal.MissionRepository, opts ...Option) *UpdateGoalProgressHandler[*goal.Mission] {
	return NewUpdateGoalProgressHandler[*goal.Mission](repo, opts...)
}

// Handle applies the update inside the store's atomic read-modify-write.
func (h *UpdateGoalProgressHandler[T]) Handle(ctx context.Context, cmd UpdateGoalProgressCommand) (*UpdateGoalProgressResult[T], error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock()
	var became bool

	updated, err := h.store.Update(ctx, cmd.GoalID, func(g T) error {
		completed, err := g.UpdateProgress(cmd.Progress, now)
		if err != nil {
			return err
		}
		became = completed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update goal progress: %w", err)
	}

	if became {
		target := updated.TargetState()
		h.logger.Info("goal completed",
			"kind", updated.Kind(),
			"goal_id", updated.GoalID(),
			"user_id", updated.Owner(),
		)
		h.publish(shared.NewGoalCompletedEvent(updated.Owner(), updated.GoalID(), string(updated.Kind()), target.Goal, now))
	}

	return &UpdateGoalProgressResult[T]{Goal: updated, BecameCompleted: became}, nil
}
