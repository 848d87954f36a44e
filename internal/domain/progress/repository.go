package progress

import (
	"context"
)

// Repository persists TopicProgress records keyed by (user, topic).
// Implementations live in the infrastructure layer (PostgreSQL, in-memory).
type Repository interface {
	// Get returns the record or shared.ErrTopicProgressNotFound.
	Get(ctx context.Context, userID, topicID string) (*TopicProgress, error)

	// ListByUser returns every topic record of the user ordered by topic ID.
	ListByUser(ctx context.Context, userID string) ([]*TopicProgress, error)

	// Upsert loads the record, or an empty beginner record when none exists,
	// applies mutate and stores the result as one atomic read-modify-write.
	// Nothing is persisted when mutate returns an error.
	Upsert(ctx context.Context, userID, topicID string, mutate func(p *TopicProgress) error) (*TopicProgress, error)
}

// SessionArchive is the append-only store for sessions that left the hot
// window. It is keyed by (user, topic, date, seq) and appending the same
// session twice is a no-op. Hot-path computations never read from it.
type SessionArchive interface {
	Append(ctx context.Context, userID, topicID string, sessions []PracticeSession) error
	List(ctx context.Context, userID, topicID string) ([]PracticeSession, error)
}
