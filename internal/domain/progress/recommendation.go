package progress

import (
	"fmt"
	"strings"
	"time"
)

const (
	// FoundationSessionThreshold is the session count below which beginners
	// are steered toward foundational practice.
	FoundationSessionThreshold = 5

	// StaleAfterDays is how long a topic may go unstudied before a review
	// reminder is produced.
	StaleAfterDays = 7

	// MaxNamedWeakAreas caps how many weak areas a recommendation names.
	MaxNamedWeakAreas = 3
)

// GenerateRecommendations derives advisory lines from the topic state.
// Every matching rule contributes one line, always in this order: foundations,
// weak areas, review reminder, trend.
func GenerateRecommendations(p *TopicProgress, now time.Time) []string {
	recs := make([]string, 0, 4)

	if p.MasteryLevel == MasteryBeginner && p.TotalSessions < FoundationSessionThreshold {
		recs = append(recs, "Keep practicing the foundational exercises to build a solid base in this topic.")
	}

	if len(p.WeakAreas) > 0 {
		recs = append(recs, fmt.Sprintf("Focus your next sessions on: %s.",
			strings.Join(p.WeakAreas.First(MaxNamedWeakAreas), ", ")))
	}

	if days, ok := p.DaysSinceStudied(now); !ok || days > StaleAfterDays {
		recs = append(recs, "It has been a while since you studied this topic. Schedule a review session.")
	}

	switch p.Trend() {
	case TrendDeclining:
		recs = append(recs, "Your recent scores are dropping. Review the fundamentals before moving on.")
	case TrendImproving:
		recs = append(recs, "Your scores are improving. Try more challenging material.")
	}

	return recs
}
