package routes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shieldfi/shieldfi/internal/config"
	"github.com/shieldfi/shieldfi/internal/logging"
	"github.com/shieldfi/shieldfi/internal/metal"
	"github.com/shieldfi/shieldfi/internal/metal/metaltest"
	"github.com/shieldfi/shieldfi/internal/notification"
	"github.com/shieldfi/shieldfi/internal/persistence"
	"github.com/shieldfi/shieldfi/internal/session"
	"github.com/shieldfi/shieldfi/internal/tokens"
)

type harness struct {
	app   *fiber.App
	fake  *metaltest.Server
	store *session.Store
	hub   *notification.Hub
}

func newHarness(t *testing.T, withRedis bool) harness {
	t.Helper()
	fake := metaltest.NewServer()
	t.Cleanup(fake.Close)

	client, err := metal.NewClient(metal.Config{BaseURL: fake.URL, APIKey: metaltest.APIKey, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	logger := logging.Discard()
	hub := notification.NewHub()
	mirror := persistence.NewMirror(persistence.NewMemoryBackend(), persistence.DefaultKey, logger)
	store := session.NewStore(metal.NewWalletClient(client), mirror, hub, logger)

	var cache *redis.Client
	if withRedis {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis: %v", err)
		}
		cache = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			cache.Close()
			mr.Close()
		})
	}

	app := fiber.New()
	err = Setup(app, Deps{
		Cfg:    config.Config{AppEnv: "development", IdempotencyTTL: time.Minute, ConnectRateLimit: 10},
		Store:  store,
		Hub:    hub,
		Tokens: tokens.NewService(metal.NewTokenClient(client), store, logger),
		Cache:  cache,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return harness{app: app, fake: fake, store: store, hub: hub}
}

func (h harness) do(t *testing.T, method, path, body string, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, payload
}

type sessionBody struct {
	State   session.State          `json:"state"`
	Session *session.WalletSession `json:"session"`
}

func decodeSession(t *testing.T, payload []byte) sessionBody {
	t.Helper()
	var out sessionBody
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t, false)

	status, payload := h.do(t, http.MethodGet, "/api/v1/session", "", nil)
	if status != http.StatusOK || decodeSession(t, payload).State != session.StateDisconnected {
		t.Fatalf("unexpected initial session %d %s", status, payload)
	}

	status, payload = h.do(t, http.MethodPost, "/api/v1/session/connect", `{"username":"alice"}`, nil)
	if status != http.StatusOK {
		t.Fatalf("connect: %d %s", status, payload)
	}
	connected := decodeSession(t, payload)
	if connected.State != session.StateConnected || connected.Session == nil || connected.Session.Address == "" {
		t.Fatalf("unexpected connect body %s", payload)
	}

	status, payload = h.do(t, http.MethodPost, "/api/v1/session/refresh", "", nil)
	if status != http.StatusOK || decodeSession(t, payload).Session.Address != connected.Session.Address {
		t.Fatalf("refresh: %d %s", status, payload)
	}

	status, payload = h.do(t, http.MethodGet, "/api/v1/session/transactions", "", nil)
	if status != http.StatusOK || !bytes.Contains(payload, []byte(`"transactions":[]`)) {
		t.Fatalf("transactions: %d %s", status, payload)
	}

	status, payload = h.do(t, http.MethodDelete, "/api/v1/session", "", nil)
	if status != http.StatusOK || decodeSession(t, payload).State != session.StateDisconnected {
		t.Fatalf("disconnect: %d %s", status, payload)
	}
}

func TestSessionErrorMapping(t *testing.T) {
	h := newHarness(t, false)

	if status, _ := h.do(t, http.MethodPost, "/api/v1/session/connect", `{"username":""}`, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty username, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/v1/session/refresh", "", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for refresh without session, got %d", status)
	}

	h.fake.Override(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if status, _ := h.do(t, http.MethodPost, "/api/v1/session/connect", `{"username":"bob"}`, nil); status != http.StatusBadGateway {
		t.Fatalf("expected 502 for invalid response, got %d", status)
	}

	h.fake.Close()
	if status, _ := h.do(t, http.MethodPost, "/api/v1/session/connect", `{"username":"bob"}`, nil); status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for network failure, got %d", status)
	}
}

func TestTokenRoutes(t *testing.T) {
	h := newHarness(t, false)

	status, payload := h.do(t, http.MethodPost, "/api/v1/tokens", `{"name":"Shield","symbol":"SHLD","decimals":18}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, payload)
	}
	var asset metal.TokenAsset
	if err := json.Unmarshal(payload, &asset); err != nil {
		t.Fatalf("decode asset: %v", err)
	}

	status, payload = h.do(t, http.MethodPost, "/api/v1/tokens/"+asset.Address+"/distribute", `{"recipient":"0xRecipient","amount":"50"}`, nil)
	if status != http.StatusOK || !bytes.Contains(payload, []byte(`"success":true`)) {
		t.Fatalf("distribute: %d %s", status, payload)
	}

	status, payload = h.do(t, http.MethodGet, "/api/v1/tokens/"+asset.Address+"/holders", "", nil)
	if status != http.StatusOK || !bytes.Contains(payload, []byte(`"0xRecipient"`)) {
		t.Fatalf("holders: %d %s", status, payload)
	}

	status, payload = h.do(t, http.MethodGet, "/api/v1/tokens/"+asset.Address, "", nil)
	if status != http.StatusOK || !bytes.Contains(payload, []byte(`"totalSupply":"50"`)) {
		t.Fatalf("get: %d %s", status, payload)
	}

	if status, _ := h.do(t, http.MethodPost, "/api/v1/tokens/"+asset.Address+"/distribute", `{"recipient":"0xRecipient","amount":"1e3"}`, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for exponent amount, got %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/v1/tokens/0xmissing", "", nil); status != http.StatusBadGateway {
		t.Fatalf("expected 502 for unknown token, got %d", status)
	}
}

func TestDistributeIsIdempotentWithRedis(t *testing.T) {
	h := newHarness(t, true)

	status, payload := h.do(t, http.MethodPost, "/api/v1/tokens", `{"name":"Shield","symbol":"SHLD"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, payload)
	}
	var asset metal.TokenAsset
	if err := json.Unmarshal(payload, &asset); err != nil {
		t.Fatalf("decode asset: %v", err)
	}

	path := "/api/v1/tokens/" + asset.Address + "/distribute"
	body := `{"recipient":"0xRecipient","amount":"50"}`
	if status, _ := h.do(t, http.MethodPost, path, body, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", status)
	}

	key := map[string]string{"Idempotency-Key": "dist-1"}
	_, first := h.do(t, http.MethodPost, path, body, key)
	_, second := h.do(t, http.MethodPost, path, body, key)
	if !bytes.Equal(first, second) {
		t.Fatalf("expected replayed response, got %s and %s", first, second)
	}

	distributions := 0
	for _, r := range h.fake.Requests() {
		if strings.HasSuffix(r.URL.Path, "/distribute") {
			distributions++
		}
	}
	if distributions != 1 {
		t.Fatalf("expected one remote distribution, got %d", distributions)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, true)

	status, payload := h.do(t, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz: %d %s", status, payload)
	}
	if !bytes.Contains(payload, []byte(`"redis":"ok"`)) || !bytes.Contains(payload, []byte(`"postgres":"disabled"`)) {
		t.Fatalf("unexpected health body %s", payload)
	}
	if !bytes.Contains(payload, []byte(`"subscribers":0`)) {
		t.Fatalf("expected subscriber count in %s", payload)
	}
}

func TestWriteEventFormat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	event := session.Event{Kind: session.EventSessionChanged, State: session.StateDisconnected}
	if err := writeEvent(w, string(event.Kind), event); err != nil {
		t.Fatalf("write event: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "event: session_changed\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Fatalf("unexpected frame %q", out)
	}
}

func TestSetupRequiresCoreDeps(t *testing.T) {
	if err := Setup(fiber.New(), Deps{}); err == nil {
		t.Fatal("expected error without store")
	}
}

// readEvent returns the next event name and data line, skipping heartbeat comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSessionEventsStream(t *testing.T) {
	h := newHarness(t, false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go h.app.Listener(ln)

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/session/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	name, data := readEvent(t, reader)
	if name != "snapshot" || !strings.Contains(data, `"state":"disconnected"`) {
		t.Fatalf("unexpected first event %s %s", name, data)
	}
	if h.hub.Len() != 1 {
		t.Fatalf("expected one subscriber, got %d", h.hub.Len())
	}
	if _, payload := h.do(t, http.MethodGet, "/healthz", "", nil); !bytes.Contains(payload, []byte(`"subscribers":1`)) {
		t.Fatalf("expected open stream in health body %s", payload)
	}

	if _, err := h.store.Connect(context.Background(), "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	name, data = readEvent(t, reader)
	if name != string(session.EventSessionChanged) || !strings.Contains(data, `"state":"connected"`) {
		t.Fatalf("unexpected change event %s %s", name, data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.app.ShutdownWithContext(ctx); err != nil {
		t.Fatalf("shutdown with open stream: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected stream to unsubscribe, %d subscribers left", h.hub.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
