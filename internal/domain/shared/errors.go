// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("conflict")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrEmptyValue      = errors.New("value cannot be empty")

	// State errors
	ErrAlreadyCompleted = errors.New("already completed")
	ErrExpired          = errors.New("expired")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "goal", "leaderboard"
	Op      string // Operation that failed, e.g., "RecordSession", "UpdateRank"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError builds a validation failure with a formatted message.
func ValidationError(domain, op, format string, args ...interface{}) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// Progress domain errors
var (
	ErrTopicProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "topic progress not found")
	ErrInvalidScore          = NewDomainError("progress", "Validate", ErrValidation, "score must be between 0 and 100")
	ErrNegativeTimeSpent     = NewDomainError("progress", "Validate", ErrValidation, "time spent cannot be negative")
)

// Goal domain errors
var (
	ErrAchievementNotFound   = NewDomainError("goal", "FindAchievement", ErrNotFound, "achievement not found")
	ErrMissionNotFound       = NewDomainError("goal", "FindMission", ErrNotFound, "mission not found")
	ErrNegativeProgress      = NewDomainError("goal", "Validate", ErrValidation, "progress cannot be negative")
	ErrInvalidTarget         = NewDomainError("goal", "Validate", ErrValidation, "target must be positive")
	ErrMissionCompleted      = NewDomainError("goal", "UpdateMission", ErrAlreadyCompleted, "mission already completed")
	ErrMissionExpired        = NewDomainError("goal", "UpdateMission", ErrExpired, "mission has expired")
	ErrAchievementIDConflict = NewDomainError("goal", "CreateAchievement", ErrConflict, "achievement already exists")
)

// Leaderboard domain errors
var (
	ErrEntryNotFound           = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard entry not found")
	ErrInvalidRank             = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "rank must be at least 1")
	ErrNegativeCounter         = NewDomainError("leaderboard", "Validate", ErrValidation, "counters cannot be negative")
	ErrRecalculationInProgress = NewDomainError("leaderboard", "Recalculate", ErrConflict, "recalculation already running for series")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrEmptyValue)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
