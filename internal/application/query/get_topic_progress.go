// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/progress"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// Clock returns the current time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// ══════════════════════════════════════════════════════════════════════════════
// GET TOPIC PROGRESS QUERY
// Returns a topic record enriched with the derived trend and recommendations.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopicProgressQuery identifies the topic record.
type GetTopicProgressQuery struct {
	UserID  string
	TopicID string
}

// Validate validates the query.
func (q GetTopicProgressQuery) Validate() error {
	if q.UserID == "" || q.TopicID == "" {
		return shared.ValidationError("progress", "GetTopicProgress", "user_id and topic_id are required")
	}
	return nil
}

// TopicProgressDTO is the read model of one topic.
type TopicProgressDTO struct {
	UserID             string                     `json:"user_id"`
	TopicID            string                     `json:"topic_id"`
	MasteryLevel       progress.MasteryLevel      `json:"mastery_level"`
	TimeSpent          time.Duration              `json:"time_spent"`
	TotalSessions      int                        `json:"total_sessions"`
	AverageScore       float64                    `json:"average_score"`
	WeakAreas          []string                   `json:"weak_areas"`
	StrongAreas        []string                   `json:"strong_areas"`
	LastStudied        *time.Time                 `json:"last_studied,omitempty"`
	StudyStreak        int                        `json:"study_streak"`
	LongestStudyStreak int                        `json:"longest_study_streak"`
	Trend              progress.Trend             `json:"trend"`
	Recommendations    []string                   `json:"recommendations"`
	RecentSessions     []progress.PracticeSession `json:"recent_sessions"`
}

// GetTopicProgressHandler handles GetTopicProgressQuery.
type GetTopicProgressHandler struct {
	repo  progress.Repository
	clock Clock
}

// NewGetTopicProgressHandler creates a new handler.
func NewGetTopicProgressHandler(repo progress.Repository) *GetTopicProgressHandler {
	return &GetTopicProgressHandler{repo: repo, clock: utcNow}
}

// WithClock overrides the time source used for staleness checks.
func (h *GetTopicProgressHandler) WithClock(c Clock) *GetTopicProgressHandler {
	h.clock = c
	return h
}

// Handle executes the query.
func (h *GetTopicProgressHandler) Handle(ctx context.Context, q GetTopicProgressQuery) (*TopicProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	p, err := h.repo.Get(ctx, q.UserID, q.TopicID)
	if err != nil {
		return nil, fmt.Errorf("get topic progress: %w", err)
	}

	return ToTopicProgressDTO(p, h.clock()), nil
}

// ToTopicProgressDTO builds the read model at the given time.
func ToTopicProgressDTO(p *progress.TopicProgress, now time.Time) *TopicProgressDTO {
	return &TopicProgressDTO{
		UserID:             p.UserID,
		TopicID:            p.TopicID,
		MasteryLevel:       p.MasteryLevel,
		TimeSpent:          p.TimeSpent,
		TotalSessions:      p.TotalSessions,
		AverageScore:       p.AverageScore(),
		WeakAreas:          append([]string{}, p.WeakAreas...),
		StrongAreas:        append([]string{}, p.StrongAreas...),
		LastStudied:        p.LastStudied,
		StudyStreak:        p.StudyStreak,
		LongestStudyStreak: p.LongestStudyStreak,
		Trend:              p.Trend(),
		Recommendations:    progress.GenerateRecommendations(p, now),
		RecentSessions:     append([]progress.PracticeSession{}, p.PracticeSessions...),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION HISTORY QUERY
// Full session history: archived sessions followed by the hot window.
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionHistoryHandler reads archived and hot sessions of a topic.
type GetSessionHistoryHandler struct {
	repo    progress.Repository
	archive progress.SessionArchive
}

// NewGetSessionHistoryHandler creates a new handler.
func NewGetSessionHistoryHandler(repo progress.Repository, archive progress.SessionArchive) *GetSessionHistoryHandler {
	return &GetSessionHistoryHandler{repo: repo, archive: archive}
}

// Handle returns every known session of the topic, oldest first.
func (h *GetSessionHistoryHandler) Handle(ctx context.Context, q GetTopicProgressQuery) ([]progress.PracticeSession, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	p, err := h.repo.Get(ctx, q.UserID, q.TopicID)
	if err != nil {
		return nil, fmt.Errorf("get session history: %w", err)
	}

	var sessions []progress.PracticeSession
	if h.archive != nil {
		archived, err := h.archive.List(ctx, q.UserID, q.TopicID)
		if err != nil {
			return nil, fmt.Errorf("get session history: archive: %w", err)
		}
		sessions = append(sessions, archived...)
	}
	return append(sessions, p.PracticeSessions...), nil
}
