// Package stats rolls per-topic and per-goal state into user-level summaries.
package stats

import (
	"time"

	"github.com/studyquest/progress-engine/internal/domain/goal"
	"github.com/studyquest/progress-engine/internal/domain/progress"
)

// Summary is the aggregate view of one user's progress.
type Summary struct {
	UserID string `json:"user_id"`

	TopicCount    int           `json:"topic_count"`
	TotalTime     time.Duration `json:"total_time"`
	TotalSessions int           `json:"total_sessions"`

	// AverageScore is the session-weighted mean over the retained sessions.
	AverageScore float64 `json:"average_score"`

	MasteryBreakdown map[progress.MasteryLevel]int `json:"mastery_breakdown"`
	TopicsMastered   int                           `json:"topics_mastered"`
	LongestStreak    int                           `json:"longest_study_streak"`

	AchievementsTotal     int `json:"achievements_total"`
	AchievementsCompleted int `json:"achievements_completed"`

	MissionsTotal     int `json:"missions_total"`
	MissionsCompleted int `json:"missions_completed"`
	MissionsActive    int `json:"missions_active"`
	MissionsExpired   int `json:"missions_expired"`

	// CompletionRate is completed goals over all goals, 0 when there are none.
	CompletionRate float64 `json:"completion_rate"`

	LastStudied *time.Time `json:"last_studied,omitempty"`
}

// Summarize builds a Summary. Records belonging to other users are skipped.
func Summarize(userID string, topics []*progress.TopicProgress, achievements []*goal.Achievement, missions []*goal.Mission, now time.Time) Summary {
	s := Summary{
		UserID:           userID,
		MasteryBreakdown: make(map[progress.MasteryLevel]int, len(progress.AllMasteryLevels)),
	}
	for _, level := range progress.AllMasteryLevels {
		s.MasteryBreakdown[level] = 0
	}

	var scoreSum float64
	var scored int
	for _, t := range topics {
		if t == nil || t.UserID != userID {
			continue
		}
		s.TopicCount++
		s.TotalTime += t.TimeSpent
		s.TotalSessions += t.TotalSessions
		s.MasteryBreakdown[t.MasteryLevel]++
		if t.MasteryLevel == progress.MasteryMastered {
			s.TopicsMastered++
		}
		if t.LongestStudyStreak > s.LongestStreak {
			s.LongestStreak = t.LongestStudyStreak
		}
		for _, session := range t.PracticeSessions {
			scoreSum += session.Score
			scored++
		}
		if t.LastStudied != nil && (s.LastStudied == nil || t.LastStudied.After(*s.LastStudied)) {
			last := *t.LastStudied
			s.LastStudied = &last
		}
	}
	if scored > 0 {
		s.AverageScore = scoreSum / float64(scored)
	}

	for _, a := range achievements {
		if a == nil || a.UserID != userID {
			continue
		}
		s.AchievementsTotal++
		if a.Target.Completed {
			s.AchievementsCompleted++
		}
	}

	for _, m := range missions {
		if m == nil || m.UserID != userID {
			continue
		}
		s.MissionsTotal++
		switch {
		case m.Target.Completed:
			s.MissionsCompleted++
		case m.IsExpired(now):
			s.MissionsExpired++
		default:
			s.MissionsActive++
		}
	}

	if goals := s.AchievementsTotal + s.MissionsTotal; goals > 0 {
		s.CompletionRate = float64(s.AchievementsCompleted+s.MissionsCompleted) / float64(goals)
	}

	return s
}
