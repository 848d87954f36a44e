// Package eventhandler contains reactions to domain events. The engine itself
// only reports what changed; these handlers turn the reports into user-facing
// notifications and hand them to a Notifier.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/studyquest/progress-engine/internal/domain/leaderboard"
	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER PORT
// ══════════════════════════════════════════════════════════════════════════════

// Notification is a message addressed to one user.
type Notification struct {
	UserID    string
	Kind      string
	Text      string
	CreatedAt time.Time
}

// Notifier delivers notifications. Delivery channels live outside the engine.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It is the default
// when no delivery channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, msg Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"user_id", msg.UserID,
		"kind", msg.Kind,
		"text", msg.Text,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationHandlers reacts to mastery, goal and rank events.
// Handlers read the event payload rather than concrete event types so that
// events relayed from other instances are handled the same way.
type NotificationHandlers struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration
}

// NewNotificationHandlers creates the handler set.
func NewNotificationHandlers(notifier Notifier, logger *slog.Logger) *NotificationHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &NotificationHandlers{
		notifier: notifier,
		logger:   logger.With("component", "notifications"),
		timeout:  5 * time.Second,
	}
}

// Register subscribes every handler to the bus.
func (h *NotificationHandlers) Register(bus shared.EventSubscriber) error {
	subs := map[shared.EventType]shared.EventHandler{
		shared.EventMasteryLevelChanged: h.OnMasteryLevelChanged,
		shared.EventGoalCompleted:       h.OnGoalCompleted,
		shared.EventRankUpdated:         h.OnRankUpdated,
		shared.EventRanksRecalculated:   h.OnRanksRecalculated,
	}
	for eventType, handler := range subs {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}
	return nil
}

// OnMasteryLevelChanged congratulates the user on a new level.
func (h *NotificationHandlers) OnMasteryLevelChanged(event shared.Event) error {
	p := event.Payload()
	return h.send(Notification{
		UserID:    str(p["user_id"]),
		Kind:      "mastery",
		Text:      fmt.Sprintf("You reached %s level in %s.", str(p["new_level"]), str(p["topic_id"])),
		CreatedAt: event.OccurredAt(),
	})
}

// OnGoalCompleted announces a completed achievement or mission.
func (h *NotificationHandlers) OnGoalCompleted(event shared.Event) error {
	p := event.Payload()
	return h.send(Notification{
		UserID:    str(p["user_id"]),
		Kind:      str(p["kind"]),
		Text:      fmt.Sprintf("Goal %s completed: target of %d reached.", str(p["goal_id"]), num(p["target"])),
		CreatedAt: event.OccurredAt(),
	})
}

// OnRankUpdated notifies on a most-improved flag or on entering the top
// performers. Other rank moves are silent.
func (h *NotificationHandlers) OnRankUpdated(event shared.Event) error {
	p := event.Payload()
	oldRank, newRank := num(p["old_rank"]), num(p["new_rank"])

	var text string
	switch {
	case p["most_improved"] == true:
		text = fmt.Sprintf("Most improved: you climbed to rank %d.", newRank)
	case newRank <= leaderboard.TopPerformanceRank && oldRank > leaderboard.TopPerformanceRank:
		text = fmt.Sprintf("You entered the top %d at rank %d.", leaderboard.TopPerformanceRank, newRank)
	default:
		return nil
	}

	return h.send(Notification{
		UserID:    str(p["user_id"]),
		Kind:      "rank",
		Text:      text,
		CreatedAt: event.OccurredAt(),
	})
}

// OnRanksRecalculated only records the run; recalculation moves many users
// at once and is not announced individually.
func (h *NotificationHandlers) OnRanksRecalculated(event shared.Event) error {
	p := event.Payload()
	h.logger.Info("ranks recalculated",
		"run_id", str(p["run_id"]),
		"series", str(p["series"]),
		"updated", num(p["updated_count"]),
	)
	return nil
}

func (h *NotificationHandlers) send(n Notification) error {
	if n.UserID == "" {
		h.logger.Warn("dropping notification without user", "kind", n.Kind)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify %s: %w", n.UserID, err)
	}
	return nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// num accepts ints from local events and float64s from decoded JSON.
func num(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
