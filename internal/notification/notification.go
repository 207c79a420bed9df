package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shieldfi/shieldfi/internal/session"
)

// Subscriber receives session events. It runs on the notifying goroutine.
type Subscriber func(event session.Event)

// Hub fans session events out to registered subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it again.
func (h *Hub) Subscribe(fn Subscriber) (unsubscribe func()) {
	id := uuid.NewString()
	h.mu.Lock()
	h.subscribers[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
		})
	}
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Notify delivers the event to every subscriber.
func (h *Hub) Notify(_ context.Context, event session.Event) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		targets = append(targets, fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(event)
	}
}

// LoggerNotifier writes session events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Notify writes the event to the structured logger.
func (n *LoggerNotifier) Notify(_ context.Context, event session.Event) {
	if n == nil || n.logger == nil {
		return
	}
	attrs := []any{
		slog.String("kind", string(event.Kind)),
		slog.String("state", string(event.State)),
	}
	if event.Session != nil {
		attrs = append(attrs,
			slog.String("address", event.Session.Address),
			slog.String("total_value", event.Session.TotalValue.String()),
			slog.Int("tokens", len(event.Session.Tokens)),
		)
	}
	if event.Kind == session.EventOperationFailed {
		attrs = append(attrs,
			slog.String("operation", event.Operation),
			slog.String("error_kind", string(event.ErrorKind)),
			slog.String("message", event.Message),
		)
		n.logger.Warn("notification", attrs...)
		return
	}
	n.logger.Info("notification", attrs...)
}

// Multi forwards each event to every notifier in order.
type Multi []session.Notifier

// Notify implements session.Notifier.
func (m Multi) Notify(ctx context.Context, event session.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}
