package metal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shieldfi/shieldfi/internal/apperrors"
)

const (
	DefaultBaseURL = "https://api.metal.build"
	DefaultNetwork = "base"
	apiKeyHeader   = "x-api-key"
	maxErrorBody   = 512
)

// Config configures the shared transport used by WalletClient and TokenClient.
type Config struct {
	BaseURL    string
	APIKey     string
	Network    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client carries the base location, credential, and network qualifier for every call.
type Client struct {
	baseURL    string
	apiKey     string
	network    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and builds a transport.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid metal base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid metal base URL: scheme must be http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return nil, fmt.Errorf("invalid metal base URL: host is required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("metal API key is required")
	}

	network := strings.ToLower(strings.TrimSpace(cfg.Network))
	if network == "" {
		network = DefaultNetwork
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		apiKey:     apiKey,
		network:    network,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the normalized remote base location.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Network returns the network qualifier sent with token writes.
func (c *Client) Network() string {
	return c.network
}

// do issues one request and decodes a 2xx JSON body into target. It never retries.
func (c *Client) do(ctx context.Context, op, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInvalidInput(op, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInvalidInput(op, fmt.Sprintf("build request: %v", err))
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("metal request failed", slog.String("op", op), slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return apperrors.NewNetworkFailure(op, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return apperrors.NewNetworkFailure(op, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("metal request completed",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", response.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		text := strings.TrimSpace(string(raw))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return apperrors.NewRemoteRejected(op, response.StatusCode, text)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.NewInvalidResponse(op, "failed to decode response", err)
	}
	return nil
}

func pathSegment(value string) string {
	return url.PathEscape(strings.TrimSpace(value))
}
