package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// DefaultChannel is the Pub/Sub channel events are relayed on.
const DefaultChannel = "progress-engine:events"

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBus relays events between engine instances over Redis Pub/Sub.
// Local subscribers are served by an embedded InMemoryEventBus; events that
// arrive from other instances are replayed into it. Events this instance
// published are skipped on receipt.
type RedisEventBus struct {
	client     *redis.Client
	pubsub     *redis.PubSub
	local      *InMemoryEventBus
	channel    string
	instanceID string
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Client *redis.Client

	// Channel defaults to DefaultChannel.
	Channel string

	// InstanceID defaults to a random UUID.
	InstanceID string

	Local  InMemoryEventBusConfig
	Logger *slog.Logger
}

// NewRedisEventBus subscribes to the channel and starts the receive loop.
func NewRedisEventBus(ctx context.Context, config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Local.Logger == nil {
		config.Local.Logger = config.Logger
	}

	pubsub := config.Client.Subscribe(ctx, config.Channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", config.Channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:     config.Client,
		pubsub:     pubsub,
		local:      NewInMemoryEventBus(config.Local),
		channel:    config.Channel,
		instanceID: config.InstanceID,
		logger:     config.Logger.With("component", "redis_event_bus"),
		ctx:        loopCtx,
		cancel:     cancel,
	}

	bus.wg.Add(1)
	go bus.receiveLoop()

	return bus, nil
}

// Subscribe registers a local handler for one event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a local handler for every event.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish delivers locally and relays to other instances. A relay failure is
// logged; local delivery still happens.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(eventEnvelope{
		InstanceID:  b.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.channel, data).Err(); err != nil {
		b.logger.Error("failed to relay event", "event_type", event.EventType(), "error", err)
	}

	return b.local.Publish(event)
}

func (b *RedisEventBus) receiveLoop() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleMessage(msg.Payload)
		}
	}
}

func (b *RedisEventBus) handleMessage(payload string) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Error("failed to decode relayed event", "error", err)
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	if err := b.local.Publish(&relayedEvent{env: env}); err != nil {
		b.logger.Error("failed to deliver relayed event", "event_type", env.EventType, "error", err)
	}
}

// Close stops the receive loop, unsubscribes and drains local handlers.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()

	if lerr := b.local.Close(); lerr != nil {
		err = errors.Join(err, lerr)
	}
	b.logger.Info("redis event bus closed")
	return err
}

// Metrics returns the metrics of the local bus.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.local.Metrics()
}

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// relayedEvent is an event decoded from another instance. Only the generic
// Event accessors are available; handlers that type-switch on concrete event
// types read the payload map instead.
type relayedEvent struct {
	env eventEnvelope
}

func (e *relayedEvent) EventType() shared.EventType     { return e.env.EventType }
func (e *relayedEvent) AggregateID() string             { return e.env.AggregateID }
func (e *relayedEvent) OccurredAt() time.Time           { return e.env.OccurredAt }
func (e *relayedEvent) Payload() map[string]interface{} { return e.env.Payload }
