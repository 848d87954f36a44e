package command

import (
	"context"
	"fmt"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION COMMAND
// Appends a completed practice session to a topic, updates the aggregates and
// re-evaluates mastery before the record is persisted.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionCommand contains the data of a completed practice session.
type RecordSessionCommand struct {
	UserID      string
	TopicID     string
	Score       float64
	TimeSpent   time.Duration
	WeakAreas   []string
	StrongAreas []string
}

// Validate validates the command.
func (c RecordSessionCommand) Validate() error {
	if c.UserID == "" {
		return shared.ValidationError("progress", "RecordSession", "user_id is required")
	}
	if c.TopicID == "" {
		return shared.ValidationError("progress", "RecordSession", "topic_id is required")
	}
	return c.input().Validate()
}

func (c RecordSessionCommand) input() progress.SessionInput {
	return progress.SessionInput{
		Score:       c.Score,
		TimeSpent:   c.TimeSpent,
		WeakAreas:   c.WeakAreas,
		StrongAreas: c.StrongAreas,
	}
}

// RecordSessionResult contains the persisted record and what changed.
type RecordSessionResult struct {
	Progress *progress.TopicProgress

	// MasteryChanged is true when this session advanced the mastery level.
	MasteryChanged bool
	PreviousLevel  progress.MasteryLevel

	// ArchivedSessions is how many sessions left the hot window.
	ArchivedSessions int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionHandler handles the RecordSessionCommand.
type RecordSessionHandler struct {
	repo    progress.Repository
	archive progress.SessionArchive
	handlerOptions
}

// NewRecordSessionHandler creates a new handler. archive may be nil, in which
// case sessions leaving the hot window are dropped.
func NewRecordSessionHandler(repo progress.Repository, archive progress.SessionArchive, opts ...Option) *RecordSessionHandler {
	return &RecordSessionHandler{
		repo:           repo,
		archive:        archive,
		handlerOptions: buildOptions(opts),
	}
}

// Handle records the session as one atomic read-modify-write of the topic.
func (h *RecordSessionHandler) Handle(ctx context.Context, cmd RecordSessionCommand) (*RecordSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock()
	var outcome progress.SessionOutcome

	updated, err := h.repo.Upsert(ctx, cmd.UserID, cmd.TopicID, func(p *progress.TopicProgress) error {
		out, err := p.RecordSession(cmd.input(), now)
		if err != nil {
			return err
		}
		// Archive inside the mutation so a failed append aborts the write.
		// Appends are idempotent, so a later rollback only leaves duplicates
		// that the archive ignores.
		if len(out.Archived) > 0 && h.archive != nil {
			if err := h.archive.Append(ctx, cmd.UserID, cmd.TopicID, out.Archived); err != nil {
				return fmt.Errorf("archive sessions: %w", err)
			}
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	events := []shared.Event{
		shared.NewSessionRecordedEvent(cmd.UserID, cmd.TopicID, cmd.Score, cmd.TimeSpent, now),
	}
	if outcome.MasteryChanged {
		events = append(events, shared.NewMasteryLevelChangedEvent(
			cmd.UserID, cmd.TopicID, outcome.PreviousLevel.String(), updated.MasteryLevel.String(), now))
		h.logger.Info("mastery level changed",
			"user_id", cmd.UserID,
			"topic_id", cmd.TopicID,
			"from", outcome.PreviousLevel,
			"to", updated.MasteryLevel,
		)
	}
	h.publish(events...)

	return &RecordSessionResult{
		Progress:         updated,
		MasteryChanged:   outcome.MasteryChanged,
		PreviousLevel:    outcome.PreviousLevel,
		ArchivedSessions: len(outcome.Archived),
	}, nil
}
