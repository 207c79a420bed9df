package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestKindOfWrappedError(t *testing.T) {
	base := NewInvalidResponse("resolve holder", "address missing", nil)
	wrapped := fmt.Errorf("connect: %w", base)

	if got := KindOf(wrapped); got != KindInvalidResponse {
		t.Fatalf("expected %s, got %s", KindInvalidResponse, got)
	}
	if !IsKind(wrapped, KindInvalidResponse) {
		t.Fatal("expected IsKind to match")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("expected unknown kind, got %s", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %s", got)
	}
}

func TestErrorMessageIncludesStatusAndCause(t *testing.T) {
	err := NewRemoteRejected("get token", 404, "not found")
	if !strings.Contains(err.Error(), "status=404") {
		t.Fatalf("expected status in message, got %q", err.Error())
	}

	cause := errors.New("dial tcp: timeout")
	netErr := NewNetworkFailure("fetch holder", cause)
	if !errors.Is(netErr, cause) {
		t.Fatal("expected network failure to unwrap to its cause")
	}
	if !strings.HasPrefix(netErr.Error(), "fetch holder: ") {
		t.Fatalf("expected op prefix, got %q", netErr.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NewInvalidInput("distribute", "amount is required"):    http.StatusBadRequest,
		NewInvalidResponse("fetch holder", "id missing", nil):  http.StatusBadGateway,
		NewRemoteRejected("get token", 404, ""):                http.StatusBadGateway,
		NewNetworkFailure("fetch holder", errors.New("reset")): http.StatusServiceUnavailable,
		errors.New("boom"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestConstructorsSetKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	cases := []struct {
		err  *Error
		kind Kind
		want string
	}{
		{NewNetworkFailure("fetch balance", cause), KindNetworkFailure, "fetch balance: request failed: dial tcp: refused"},
		{NewInvalidResponse("resolve holder", "address missing", nil), KindInvalidResponse, "resolve holder: address missing"},
		{NewInvalidInput("connect", "username is required"), KindInvalidInput, "connect: username is required"},
		{NewPersistenceCorrupt("restore", cause), KindPersistenceCorrupt, "restore: stored session is unreadable: dial tcp: refused"},
		{NewRemoteRejected("distribute", 422, ""), KindRemoteRejected, "distribute: remote rejected request (status=422)"},
	}
	for _, tc := range cases {
		if tc.err.Kind != tc.kind {
			t.Fatalf("expected kind %s, got %s", tc.kind, tc.err.Kind)
		}
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
	if !errors.Is(NewNetworkFailure("fetch balance", cause), cause) {
		t.Fatal("expected cause to unwrap")
	}
	var nilErr *Error
	if nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Fatal("expected nil error to render empty")
	}
}
