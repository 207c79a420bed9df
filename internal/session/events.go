package session

import (
	"context"
	"time"

	"github.com/shieldfi/shieldfi/internal/apperrors"
)

// EventKind names a presentation-facing notification.
type EventKind string

const (
	EventSessionChanged  EventKind = "session_changed"
	EventOperationFailed EventKind = "operation_failed"
)

// Event is delivered to subscribers after a completed operation. Session is nil when the
// wallet is disconnected; ErrorKind and Message are only set for EventOperationFailed.
type Event struct {
	Kind      EventKind      `json:"kind"`
	State     State          `json:"state"`
	Session   *WalletSession `json:"session,omitempty"`
	Operation string         `json:"operation,omitempty"`
	ErrorKind apperrors.Kind `json:"errorKind,omitempty"`
	Message   string         `json:"message,omitempty"`
	At        time.Time      `json:"at"`
}

// Notifier receives store events one at a time, in the order the transitions happened.
// Implementations must not call back into the store synchronously.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}
