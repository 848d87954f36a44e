package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. The engine only reports what changed; delivering
// notifications or awarding points is left to subscribers.
const (
	// Progress events
	EventSessionRecorded     EventType = "progress.session_recorded"
	EventMasteryLevelChanged EventType = "progress.mastery_changed"

	// Goal events
	EventGoalCompleted EventType = "goal.completed"

	// Leaderboard events
	EventRankUpdated       EventType = "leaderboard.rank_updated"
	EventRanksRecalculated EventType = "leaderboard.recalculated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionRecordedEvent is emitted after a practice session is persisted.
type SessionRecordedEvent struct {
	BaseEvent
	UserID    string        `json:"user_id"`
	TopicID   string        `json:"topic_id"`
	Score     float64       `json:"score"`
	TimeSpent time.Duration `json:"time_spent"`
}

// Payload implements Event interface.
func (e SessionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"topic_id":   e.TopicID,
		"score":      e.Score,
		"time_spent": e.TimeSpent.String(),
	}
}

// NewSessionRecordedEvent creates a new SessionRecordedEvent.
func NewSessionRecordedEvent(userID, topicID string, score float64, timeSpent time.Duration, at time.Time) SessionRecordedEvent {
	return SessionRecordedEvent{
		BaseEvent: NewBaseEvent(EventSessionRecorded, userID, at),
		UserID:    userID,
		TopicID:   topicID,
		Score:     score,
		TimeSpent: timeSpent,
	}
}

// MasteryLevelChangedEvent is emitted when a topic advances a mastery level.
type MasteryLevelChangedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	TopicID  string `json:"topic_id"`
	OldLevel string `json:"old_level"`
	NewLevel string `json:"new_level"`
}

// Payload implements Event interface.
func (e MasteryLevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"topic_id":  e.TopicID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewMasteryLevelChangedEvent creates a new MasteryLevelChangedEvent.
func NewMasteryLevelChangedEvent(userID, topicID, oldLevel, newLevel string, at time.Time) MasteryLevelChangedEvent {
	return MasteryLevelChangedEvent{
		BaseEvent: NewBaseEvent(EventMasteryLevelChanged, userID, at),
		UserID:    userID,
		TopicID:   topicID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalCompletedEvent is emitted exactly once per achievement or mission,
// on the update that first reaches its target.
type GoalCompletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	GoalID string `json:"goal_id"`
	Kind   string `json:"kind"` // "achievement" or "mission"
	Target int    `json:"target"`
}

// Payload implements Event interface.
func (e GoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"goal_id": e.GoalID,
		"kind":    e.Kind,
		"target":  e.Target,
	}
}

// NewGoalCompletedEvent creates a new GoalCompletedEvent.
func NewGoalCompletedEvent(userID, goalID, kind string, target int, at time.Time) GoalCompletedEvent {
	return GoalCompletedEvent{
		BaseEvent: NewBaseEvent(EventGoalCompleted, goalID, at),
		UserID:    userID,
		GoalID:    goalID,
		Kind:      kind,
		Target:    target,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankUpdatedEvent is emitted after a per-user leaderboard update.
type RankUpdatedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	Series       string `json:"series"`
	OldRank      int    `json:"old_rank"`
	NewRank      int    `json:"new_rank"`
	MostImproved bool   `json:"most_improved"`
}

// Payload implements Event interface.
func (e RankUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"series":        e.Series,
		"old_rank":      e.OldRank,
		"new_rank":      e.NewRank,
		"most_improved": e.MostImproved,
	}
}

// NewRankUpdatedEvent creates a new RankUpdatedEvent.
func NewRankUpdatedEvent(userID, series string, oldRank, newRank int, mostImproved bool, at time.Time) RankUpdatedEvent {
	return RankUpdatedEvent{
		BaseEvent:    NewBaseEvent(EventRankUpdated, userID, at),
		UserID:       userID,
		Series:       series,
		OldRank:      oldRank,
		NewRank:      newRank,
		MostImproved: mostImproved,
	}
}

// RanksRecalculatedEvent is emitted after a full series recalculation commits.
type RanksRecalculatedEvent struct {
	BaseEvent
	RunID        string        `json:"run_id"`
	Series       string        `json:"series"`
	UpdatedCount int           `json:"updated_count"`
	Duration     time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e RanksRecalculatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"run_id":        e.RunID,
		"series":        e.Series,
		"updated_count": e.UpdatedCount,
		"duration":      e.Duration.String(),
	}
}

// NewRanksRecalculatedEvent creates a new RanksRecalculatedEvent.
func NewRanksRecalculatedEvent(runID, series string, updated int, duration time.Duration, at time.Time) RanksRecalculatedEvent {
	return RanksRecalculatedEvent{
		BaseEvent:    NewBaseEvent(EventRanksRecalculated, runID, at),
		RunID:        runID,
		Series:       series,
		UpdatedCount: updated,
		Duration:     duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing capabilities.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
