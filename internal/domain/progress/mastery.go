package progress

import (
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// MasteryLevel is a four-stage proficiency label for a single topic.
type MasteryLevel string

const (
	MasteryBeginner     MasteryLevel = "beginner"
	MasteryIntermediate MasteryLevel = "intermediate"
	MasteryAdvanced     MasteryLevel = "advanced"
	MasteryMastered     MasteryLevel = "mastered"
)

// AllMasteryLevels lists the levels in ascending order.
var AllMasteryLevels = []MasteryLevel{
	MasteryBeginner,
	MasteryIntermediate,
	MasteryAdvanced,
	MasteryMastered,
}

// Ordinal returns the position of the level, 0 for beginner.
// Unknown levels return -1.
func (m MasteryLevel) Ordinal() int {
	for i, l := range AllMasteryLevels {
		if l == m {
			return i
		}
	}
	return -1
}

// IsValid reports whether the level is one of the known values.
func (m MasteryLevel) IsValid() bool {
	return m.Ordinal() >= 0
}

// Less reports whether m is strictly below other.
func (m MasteryLevel) Less(other MasteryLevel) bool {
	return m.Ordinal() < other.Ordinal()
}

// String implements fmt.Stringer.
func (m MasteryLevel) String() string {
	return string(m)
}

// ParseMasteryLevel converts a stored string into a MasteryLevel.
func ParseMasteryLevel(s string) (MasteryLevel, error) {
	level := MasteryLevel(s)
	if !level.IsValid() {
		return "", fmt.Errorf("unknown mastery level %q", s)
	}
	return level, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MasteryWindow is how many of the most recent sessions are averaged.
	MasteryWindow = 5

	// MinSessionsForMastery is the minimum number of scored sessions before
	// any transition is evaluated.
	MinSessionsForMastery = 3
)

// masteryTransition describes the single forward edge out of a level.
type masteryTransition struct {
	to         MasteryLevel
	minAverage float64
	minTotal   int
}

var masteryTransitions = map[MasteryLevel]masteryTransition{
	MasteryBeginner:     {to: MasteryIntermediate, minAverage: 80, minTotal: 7},
	MasteryIntermediate: {to: MasteryAdvanced, minAverage: 85, minTotal: 8},
	MasteryAdvanced:     {to: MasteryMastered, minAverage: 90, minTotal: 10},
}

// EvaluateMastery returns the level a topic should hold after its latest session.
//
// sessions is the retained session history in chronological order and total is
// the all-time session count (which may exceed len(sessions) once older
// sessions have been archived). Only the transition out of current is checked,
// so a topic advances at most one level per evaluation and never moves down.
func EvaluateMastery(current MasteryLevel, sessions []PracticeSession, total int) MasteryLevel {
	if len(sessions) < MinSessionsForMastery {
		return current
	}

	transition, ok := masteryTransitions[current]
	if !ok {
		return current
	}

	avg := meanScore(lastN(sessions, MasteryWindow))
	if avg >= transition.minAverage && total >= transition.minTotal {
		return transition.to
	}
	return current
}

func lastN(sessions []PracticeSession, n int) []PracticeSession {
	if len(sessions) <= n {
		return sessions
	}
	return sessions[len(sessions)-n:]
}

func meanScore(sessions []PracticeSession) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sessions {
		sum += s.Score
	}
	return sum / float64(len(sessions))
}
