package metal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shieldfi/shieldfi/internal/apperrors"
	"github.com/shieldfi/shieldfi/internal/logging"
	"github.com/shieldfi/shieldfi/internal/metal/metaltest"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, APIKey: metaltest.APIKey, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.BaseURL() != DefaultBaseURL {
		t.Fatalf("unexpected base URL %s", client.BaseURL())
	}
	if client.Network() != DefaultNetwork {
		t.Fatalf("unexpected network %s", client.Network())
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", client.httpClient.Timeout)
	}
}

func TestNewClientTrimsBaseURLAndNormalizesNetwork(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "https://custom.example.com/", APIKey: "k", Network: " Base-Sepolia "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.BaseURL() != "https://custom.example.com" {
		t.Fatalf("unexpected base URL %s", client.BaseURL())
	}
	if client.Network() != "base-sepolia" {
		t.Fatalf("unexpected network %s", client.Network())
	}
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "ftp://example.com", APIKey: "k"}); err == nil {
		t.Fatal("expected scheme error")
	}
	if _, err := NewClient(Config{BaseURL: "https://", APIKey: "k"}); err == nil {
		t.Fatal("expected host error")
	}
	if _, err := NewClient(Config{BaseURL: "https://example.com"}); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestRequestsCarryCredentialHeader(t *testing.T) {
	var gotKey, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	wallets := NewWalletClient(newTestClient(t, server.URL))
	if _, err := wallets.FetchTransactions(context.Background(), "0xabc"); err != nil {
		t.Fatalf("fetch transactions: %v", err)
	}
	if gotKey != metaltest.APIKey {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotAccept != "application/json" {
		t.Fatalf("expected json accept header, got %q", gotAccept)
	}
}

func TestNetworkFailureKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	wallets := NewWalletClient(newTestClient(t, url))
	_, err := wallets.FetchBalance(context.Background(), "0xabc")
	if !apperrors.IsKind(err, apperrors.KindNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestNonSuccessStatusIsRemoteRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "holder not found", http.StatusNotFound)
	}))
	defer server.Close()

	wallets := NewWalletClient(newTestClient(t, server.URL))
	_, err := wallets.FetchBalance(context.Background(), "0xabc")
	if !apperrors.IsKind(err, apperrors.KindRemoteRejected) {
		t.Fatalf("expected remote rejected, got %v", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %v", err)
	}
}
