package progress

// Trend is a three-way classification of recent score movement.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

const (
	// MinSessionsForTrend is the smallest history that can show a direction.
	MinSessionsForTrend = 3

	// TrendThreshold is the mean-score difference (in points) between the two
	// halves that counts as movement.
	TrendThreshold = 5.0
)

// ClassifyTrend compares the mean score of the second half of sessions with
// the first half. With an odd count the middle session belongs to the second
// half. Fewer than three sessions are always stable.
func ClassifyTrend(sessions []PracticeSession) Trend {
	n := len(sessions)
	if n < MinSessionsForTrend {
		return TrendStable
	}

	mid := n / 2
	diff := meanScore(sessions[mid:]) - meanScore(sessions[:mid])

	switch {
	case diff > TrendThreshold:
		return TrendImproving
	case diff < -TrendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// RecentTrend classifies the most recent window of sessions.
func RecentTrend(sessions []PracticeSession, window int) Trend {
	return ClassifyTrend(lastN(sessions, window))
}
