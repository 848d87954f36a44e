package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

var at = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	var typed, all int32
	require.NoError(t, bus.Subscribe(shared.EventGoalCompleted, func(shared.Event) error {
		atomic.AddInt32(&typed, 1)
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		atomic.AddInt32(&all, 1)
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(shared.NewGoalCompletedEvent("u1", "g1", "mission", 5, at)))
	require.NoError(t, bus.Publish(shared.NewSessionRecordedEvent("u1", "algebra", 80, time.Minute, at)))

	assert.Equal(t, int32(1), typed)
	assert.Equal(t, int32(2), all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_PanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
	defer bus.Close()

	var after int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		atomic.AddInt32(&after, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRanksRecalculatedEvent("run", "", 3, time.Second, at)))
	assert.Equal(t, int32(1), after)
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_AsyncDrainsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var handled int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}))

	for i := 0; i < 25; i++ {
		require.NoError(t, bus.Publish(shared.NewSessionRecordedEvent("u1", "algebra", 50, time.Minute, at)))
	}
	require.NoError(t, bus.Close())

	assert.LessOrEqual(t, atomic.LoadInt32(&handled), int32(25))
	assert.True(t, errors.Is(bus.Publish(shared.NewSessionRecordedEvent("u1", "algebra", 50, 0, at)), ErrEventBusClosed))
	assert.True(t, errors.Is(bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed))
}

func TestRelayedEvent_RoundTripsEnvelope(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var got shared.Event
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = e
		return nil
	}))

	r := &RedisEventBus{local: bus, instanceID: "self", logger: bus.logger}
	r.handleMessage(`{"instance_id":"self","event_type":"goal.completed","aggregate_id":"u1"}`)
	assert.Nil(t, got)

	r.handleMessage(`{"instance_id":"other","event_type":"goal.completed","aggregate_id":"u1","payload":{"goal_id":"g1"}}`)
	require.NotNil(t, got)
	assert.Equal(t, shared.EventGoalCompleted, got.EventType())
	assert.Equal(t, "u1", got.AggregateID())
	assert.Equal(t, "g1", got.Payload()["goal_id"])
}
