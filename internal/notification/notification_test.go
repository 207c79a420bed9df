package notification

import (
	"context"
	"testing"

	"github.com/shieldfi/shieldfi/internal/logging"
	"github.com/shieldfi/shieldfi/internal/session"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub()
	var got []session.Event
	unsubscribe := hub.Subscribe(func(event session.Event) {
		got = append(got, event)
	})

	hub.Notify(context.Background(), session.Event{Kind: session.EventSessionChanged, State: session.StateConnected})
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].State != session.StateConnected {
		t.Fatalf("unexpected state %s", got[0].State)
	}

	unsubscribe()
	unsubscribe()
	if hub.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Len())
	}

	hub.Notify(context.Background(), session.Event{Kind: session.EventSessionChanged})
	if len(got) != 1 {
		t.Fatalf("expected unsubscribed handler to stay silent, got %d events", len(got))
	}
}

func TestMultiForwardsInOrder(t *testing.T) {
	first := NewHub()
	second := NewHub()
	var order []string
	first.Subscribe(func(session.Event) { order = append(order, "first") })
	second.Subscribe(func(session.Event) { order = append(order, "second") })

	multi := Multi{first, nil, NewLoggerNotifier(logging.Discard()), second}
	multi.Notify(context.Background(), session.Event{Kind: session.EventOperationFailed})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected delivery order %v", order)
	}
}
