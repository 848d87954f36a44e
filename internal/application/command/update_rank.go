package command

import (
	"context"
	"fmt"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE RANK COMMAND
// Per-user leaderboard mutation. Every call records the previous global rank
// and points in the bounded history before applying the new values.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateRankCommand carries the optional rank and counter updates.
type UpdateRankCommand struct {
	UserID string
	Series string
	Update leaderboard.RankUpdate
}

// Validate validates the command.
func (c UpdateRankCommand) Validate() error {
	if c.UserID == "" {
		return shared.ValidationError("leaderboard", "UpdateRank", "user_id is required")
	}
	return c.Update.Validate()
}

// UpdateRankHandler handles the UpdateRankCommand.
type UpdateRankHandler struct {
	repo leaderboard.Repository
	handlerOptions
}

// NewUpdateRankHandler creates a new handler.
func NewUpdateRankHandler(repo leaderboard.Repository, opts ...Option) *UpdateRankHandler {
	return &UpdateRankHandler{
		repo:           repo,
		handlerOptions: buildOptions(opts),
	}
}

// Handle applies the update. The entry must already exist; entries are
// created by the lazy read path.
func (h *UpdateRankHandler) Handle(ctx context.Context, cmd UpdateRankCommand) (*leaderboard.Entry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock()
	var oldRank int

	updated, err := h.repo.Update(ctx, cmd.UserID, cmd.Series, func(e *leaderboard.Entry) error {
		oldRank = e.GlobalRank
		return e.Apply(cmd.Update, now)
	})
	if err != nil {
		return nil, fmt.Errorf("update rank: %w", err)
	}

	h.publish(shared.NewRankUpdatedEvent(cmd.UserID, cmd.Series, oldRank, updated.GlobalRank, updated.MostImproved, now))

	return updated, nil
}
