package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE GOAL COMMANDS
// Achievements and missions are assigned by the content layer; these commands
// give them an identity and zero progress.
// ══════════════════════════════════════════════════════════════════════════════

// CreateGoalCommand describes a new achievement or mission.
type CreateGoalCommand struct {
	UserID string
	Code   string
	Title  string
	Target int

	// ExpiresAt is required for missions and ignored for achievements.
	ExpiresAt time.Time
}

// Validate validates the fields shared by both kinds.
func (c CreateGoalCommand) Validate() error {
	if c.UserID == "" {
		return shared.ValidationError("goal", "Create", "user_id is required")
	}
	if c.Code == "" {
		return shared.ValidationError("goal", "Create", "code is required")
	}
	if c.Target <= 0 {
		return shared.ErrInvalidTarget
	}
	return nil
}

// CreateGoalHandler creates achievements and missions.
type CreateGoalHandler struct {
	achievements goal.AchievementRepository
	missions     goal.MissionRepository
	newID        func() string
	handlerOptions
}

// NewCreateGoalHandler creates a new handler.
func NewCreateGoalHandler(achievements goal.AchievementRepository, missions goal.MissionRepository, opts ...Option) *CreateGoalHandler {
	return &CreateGoalHandler{
		achievements:   achievements,
		missions:       missions,
		newID:          uuid.NewString,
		handlerOptions: buildOptions(opts),
	}
}

// CreateAchievement stores a new achievement.
func (h *CreateGoalHandler) CreateAchievement(ctx context.Context, cmd CreateGoalCommand) (*goal.Achievement, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a, err := goal.NewAchievement(h.newID(), cmd.UserID, cmd.Code, cmd.Title, cmd.Target, h.clock())
	if err != nil {
		return nil, err
	}
	if err := h.achievements.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create achievement: %w", err)
	}
	return a, nil
}

// CreateMission stores a new mission.
func (h *CreateGoalHandler) CreateMission(ctx context.Context, cmd CreateGoalCommand) (*goal.Mission, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	m, err := goal.NewMission(h.newID(), cmd.UserID, cmd.Code, cmd.Title, cmd.Target, cmd.ExpiresAt, h.clock())
	if err != nil {
		return nil, err
	}
	if err := h.missions.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create mission: %w", err)
	}
	return m, nil
}
