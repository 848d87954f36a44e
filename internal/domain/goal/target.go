// Package goal models progress-versus-target records: achievements and
// missions. Both share the same clamping and completion rules; missions add
// expiry and become immutable once completed or expired.
package goal

import (
	"time"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// Kind distinguishes the two goal flavours.
type Kind string

const (
	KindAchievement Kind = "achievement"
	KindMission     Kind = "mission"
)

// Target is the shared progress-versus-target state.
type Target struct {
	// Progress is always within [0, Goal].
	Progress int

	// Goal is the amount required for completion, always positive.
	Goal int

	// Completed is sticky: once set it is never cleared.
	Completed bool

	// CompletedAt is stamped exactly once, on the update that completes the target.
	CompletedAt *time.Time
}

// NewTarget creates an empty target.
func NewTarget(goal int) (Target, error) {
	if goal <= 0 {
		return Target{}, shared.ErrInvalidTarget
	}
	return Target{Goal: goal}, nil
}

// Apply sets progress to min(newProgress, Goal) and returns true when this
// call completed the target. Values above the goal are clamped, never
// rejected. Once completed, lower or equal values leave the record unchanged.
func (t *Target) Apply(newProgress int, now time.Time) (bool, error) {
	if newProgress < 0 {
		return false, shared.ErrNegativeProgress
	}
	if t.Goal <= 0 {
		return false, shared.ErrInvalidTarget
	}

	clamped := newProgress
	if clamped > t.Goal {
		clamped = t.Goal
	}

	if t.Completed {
		// Completion is sticky; progress stays pinned at the goal.
		t.Progress = t.Goal
		return false, nil
	}

	t.Progress = clamped
	if t.Progress < t.Goal {
		return false, nil
	}

	t.Completed = true
	if t.CompletedAt == nil {
		completedAt := now
		t.CompletedAt = &completedAt
	}
	return true, nil
}

// Remaining returns how much progress is still needed.
func (t Target) Remaining() int {
	if t.Progress >= t.Goal {
		return 0
	}
	return t.Goal - t.Progress
}

// Ratio returns completion in [0, 1].
func (t Target) Ratio() float64 {
	if t.Goal <= 0 {
		return 0
	}
	return float64(t.Progress) / float64(t.Goal)
}

// Trackable is implemented by every record that carries a Target.
type Trackable interface {
	GoalID() string
	Owner() string
	Kind() Kind
	TargetState() Target

	// UpdateProgress applies a new absolute progress value with any
	// kind-specific gates. It reports whether the goal was just completed.
	UpdateProgress(newProgress int, now time.Time) (bool, error)
}
