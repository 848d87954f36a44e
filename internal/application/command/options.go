// Package command contains write operations (CQRS - Commands).
package command

import (
	"log/slog"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// Clock returns the current time. Handlers stamp every mutation with it.
type Clock func() time.Time

// handlerOptions holds the ambient dependencies every handler shares.
type handlerOptions struct {
	clock     Clock
	logger    *slog.Logger
	publisher shared.EventPublisher
}

// Option configures a command handler.
type Option func(*handlerOptions)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *handlerOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *handlerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPublisher sets the event publisher used to notify subscribers.
func WithPublisher(p shared.EventPublisher) Option {
	return func(o *handlerOptions) {
		if p != nil {
			o.publisher = p
		}
	}
}

func buildOptions(opts []Option) handlerOptions {
	o := handlerOptions{
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
		publisher: shared.NopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// publish sends events and only logs failures: the mutation is already
// committed and notification delivery is best effort.
func (o handlerOptions) publish(events ...shared.Event) {
	for _, e := range events {
		if err := o.publisher.Publish(e); err != nil {
			o.logger.Warn("failed to publish event",
				"event_type", e.EventType(),
				"aggregate_id", e.AggregateID(),
				"error", err,
			)
		}
	}
}
