package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures crossing the client boundary.
type Kind string

const (
	KindNetworkFailure     Kind = "network_failure"
	KindInvalidResponse    Kind = "invalid_response"
	KindPersistenceCorrupt Kind = "persistence_corrupt"
	KindInvalidInput       Kind = "invalid_input"
	// KindRemoteRejected covers non-2xx answers from the custodial service.
	KindRemoteRejected Kind = "remote_rejected"
	KindUnknown        Kind = "unknown"
)

// Error is the typed failure returned by the remote clients and the session store.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

// Error renders op, message, status and cause in that order.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewNetworkFailure reports a transport error or an unreachable remote.
func NewNetworkFailure(op string, err error) *Error {
	return &Error{Kind: KindNetworkFailure, Op: op, Message: "request failed", Err: err}
}

// NewInvalidResponse reports a reply that could not be decoded or is missing required fields.
func NewInvalidResponse(op, message string, err error) *Error {
	return &Error{Kind: KindInvalidResponse, Op: op, Message: message, Err: err}
}

// NewInvalidInput reports caller input rejected before any request is made.
func NewInvalidInput(op, message string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: message}
}

// NewPersistenceCorrupt reports a stored session that cannot be decoded.
func NewPersistenceCorrupt(op string, err error) *Error {
	return &Error{Kind: KindPersistenceCorrupt, Op: op, Message: "stored session is unreadable", Err: err}
}

// NewRemoteRejected reports a non-2xx answer, keeping the status and response body.
func NewRemoteRejected(op string, status int, body string) *Error {
	msg := "remote rejected request"
	if body != "" {
		msg = msg + ": " + body
	}
	return &Error{Kind: KindRemoteRejected, Op: op, Message: msg, Status: status}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps err to the status code the local API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindInvalidResponse, KindRemoteRejected:
		return http.StatusBadGateway
	case KindNetworkFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
