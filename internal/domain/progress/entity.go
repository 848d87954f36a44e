// Package progress models per-topic study state: the practice session history,
// the mastery state machine, trend classification and study recommendations.
package progress

import (
	"time"

	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE SESSION
// ══════════════════════════════════════════════════════════════════════════════

const (
	// SessionWindow is the number of sessions kept on the hot record.
	// Older sessions are handed to the archive.
	SessionWindow = 50

	// MaxScore is the upper bound of a session score.
	MaxScore = 100.0
)

// PracticeSession is a single scored study session.
type PracticeSession struct {
	// Seq is the 1-based ordinal of the session within its topic. Together
	// with Date it identifies an archived session.
	Seq       int           `json:"seq"`
	Date      time.Time     `json:"date"`
	Score     float64       `json:"score"`
	TimeSpent time.Duration `json:"time_spent"`
}

// SessionInput is the caller-supplied part of a practice session.
type SessionInput struct {
	Score       float64
	TimeSpent   time.Duration
	WeakAreas   []string
	StrongAreas []string
}

// Validate checks the numeric fields.
func (in SessionInput) Validate() error {
	if in.Score < 0 || in.Score > MaxScore {
		return shared.ErrInvalidScore
	}
	if in.TimeSpent < 0 {
		return shared.ErrNegativeTimeSpent
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// TopicProgress is the study state of one user in one topic.
type TopicProgress struct {
	UserID  string
	TopicID string

	// MasteryLevel only ever moves forward under automatic evaluation.
	MasteryLevel MasteryLevel

	// TimeSpent is the cumulative study time across all sessions.
	TimeSpent time.Duration

	// PracticeSessions holds at most SessionWindow sessions, oldest first.
	PracticeSessions []PracticeSession

	// TotalSessions counts every recorded session, archived ones included.
	TotalSessions int

	WeakAreas   LabelSet
	StrongAreas LabelSet

	// LastStudied is nil until the first session.
	LastStudied *time.Time

	// StudyStreak is the number of consecutive days with at least one session.
	StudyStreak        int
	LongestStudyStreak int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTopicProgress creates an empty record at beginner level.
func NewTopicProgress(userID, topicID string, now time.Time) *TopicProgress {
	return &TopicProgress{
		UserID:       userID,
		TopicID:      topicID,
		MasteryLevel: MasteryBeginner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SessionOutcome describes what RecordSession changed.
type SessionOutcome struct {
	// Session is the appended session.
	Session PracticeSession

	// Archived are sessions pushed out of the hot window, oldest first.
	Archived []PracticeSession

	PreviousLevel  MasteryLevel
	MasteryChanged bool
}

// RecordSession appends a session stamped at now, updates the aggregates and
// re-evaluates mastery. The record is left untouched when the input is invalid.
func (p *TopicProgress) RecordSession(in SessionInput, now time.Time) (SessionOutcome, error) {
	if err := in.Validate(); err != nil {
		return SessionOutcome{}, err
	}

	session := PracticeSession{Seq: p.TotalSessions + 1, Date: now, Score: in.Score, TimeSpent: in.TimeSpent}
	outcome := SessionOutcome{Session: session, PreviousLevel: p.MasteryLevel}

	if !p.MasteryLevel.IsValid() {
		p.MasteryLevel = MasteryBeginner
	}

	p.updateStreak(now)

	p.PracticeSessions = append(p.PracticeSessions, session)
	if overflow := len(p.PracticeSessions) - SessionWindow; overflow > 0 {
		outcome.Archived = append([]PracticeSession(nil), p.PracticeSessions[:overflow]...)
		p.PracticeSessions = append([]PracticeSession(nil), p.PracticeSessions[overflow:]...)
	}

	p.TotalSessions++
	p.TimeSpent += in.TimeSpent
	studied := now
	p.LastStudied = &studied
	p.WeakAreas = p.WeakAreas.Merge(in.WeakAreas...)
	p.StrongAreas = p.StrongAreas.Merge(in.StrongAreas...)

	p.MasteryLevel = EvaluateMastery(p.MasteryLevel, p.PracticeSessions, p.TotalSessions)
	outcome.MasteryChanged = p.MasteryLevel != outcome.PreviousLevel

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	return outcome, nil
}

// updateStreak must run before LastStudied is moved to now.
func (p *TopicProgress) updateStreak(now time.Time) {
	switch {
	case p.LastStudied == nil:
		p.StudyStreak = 1
	case timeutil.IsSameDay(*p.LastStudied, now):
		if p.StudyStreak == 0 {
			p.StudyStreak = 1
		}
	case timeutil.IsConsecutiveDay(*p.LastStudied, now):
		p.StudyStreak++
	default:
		p.StudyStreak = 1
	}

	if p.StudyStreak > p.LongestStudyStreak {
		p.LongestStudyStreak = p.StudyStreak
	}
}

// AverageScore is the mean score of the retained sessions.
func (p *TopicProgress) AverageScore() float64 {
	return meanScore(p.PracticeSessions)
}

// DaysSinceStudied returns elapsed days since the last session.
// The boolean is false when the topic was never studied.
func (p *TopicProgress) DaysSinceStudied(now time.Time) (float64, bool) {
	if p.LastStudied == nil {
		return 0, false
	}
	return timeutil.ElapsedDays(*p.LastStudied, now), true
}

// Trend classifies the most recent MasteryWindow sessions.
func (p *TopicProgress) Trend() Trend {
	return RecentTrend(p.PracticeSessions, MasteryWindow)
}
