package eventhandler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/progress-engine/internal/domain/shared"
	"github.com/studyquest/progress-engine/internal/infrastructure/messaging"
)

var at = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (c *captureNotifier) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func newBus(t *testing.T, n Notifier) *messaging.InMemoryEventBus {
	t.Helper()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { _ = bus.Close() })
	require.NoError(t, NewNotificationHandlers(n, nil).Register(bus))
	return bus
}

func TestNotifications_MasteryAndGoal(t *testing.T) {
	n := &captureNotifier{}
	bus := newBus(t, n)

	require.NoError(t, bus.Publish(shared.NewMasteryLevelChangedEvent("u1", "algebra", "beginner", "intermediate", at)))
	require.NoError(t, bus.Publish(shared.NewGoalCompletedEvent("u1", "m1", "mission", 5, at)))
	require.NoError(t, bus.Publish(shared.NewSessionRecordedEvent("u1", "algebra", 80, time.Minute, at)))

	require.Len(t, n.sent, 2)
	assert.Equal(t, "mastery", n.sent[0].Kind)
	assert.Contains(t, n.sent[0].Text, "intermediate")
	assert.Equal(t, "mission", n.sent[1].Kind)
	assert.Contains(t, n.sent[1].Text, "target of 5")
}

func TestNotifications_RankRules(t *testing.T) {
	tests := []struct {
		name         string
		oldRank      int
		newRank      int
		mostImproved bool
		want         string
	}{
		{"most improved", 300, 200, true, "Most improved"},
		{"entered top", 140, 90, false, "entered the top 100"},
		{"already in top", 50, 40, false, ""},
		{"outside top", 900, 800, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &captureNotifier{}
			bus := newBus(t, n)

			require.NoError(t, bus.Publish(shared.NewRankUpdatedEvent("u1", "", tt.oldRank, tt.newRank, tt.mostImproved, at)))

			if tt.want == "" {
				assert.Empty(t, n.sent)
				return
			}
			require.Len(t, n.sent, 1)
			assert.Contains(t, n.sent[0].Text, tt.want)
		})
	}
}

func TestNum_AcceptsDecodedJSON(t *testing.T) {
	assert.Equal(t, 7, num(7))
	assert.Equal(t, 7, num(float64(7)))
	assert.Equal(t, 0, num("7"))
}
