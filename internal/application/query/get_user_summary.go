package query

import (
	"context"
	"fmt"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER SUMMARY QUERY
// Rolls every topic, achievement and mission of a user into one summary.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserSummaryHandler handles user summary queries.
type GetUserSummaryHandler struct {
	topics       progress.Repository
	achievements goal.AchievementRepository
	missions     goal.MissionRepository
	clock        Clock
}

// NewGetUserSummaryHandler creates a new handler.
func NewGetUserSummaryHandler(topics progress.Repository, achievements goal.AchievementRepository, missions goal.MissionRepository) *GetUserSummaryHandler {
	return &GetUserSummaryHandler{
		topics:       topics,
		achievements: achievements,
		missions:     missions,
		clock:        utcNow,
	}
}

// WithClock overrides the time source used to classify missions.
func (h *GetUserSummaryHandler) WithClock(c Clock) *GetUserSummaryHandler {
	h.clock = c
	return h
}

// Handle builds the summary of userID.
func (h *GetUserSummaryHandler) Handle(ctx context.Context, userID string) (*stats.Summary, error) {
	if userID == "" {
		return nil, shared.ValidationError("stats", "Summary", "user_id is required")
	}

	topics, err := h.topics.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user summary: topics: %w", err)
	}
	achievements, err := h.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user summary: achievements: %w", err)
	}
	missions, err := h.missions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user summary: missions: %w", err)
	}

	summary := stats.Summarize(userID, topics, achievements, missions, h.clock())
	return &summary, nil
}
