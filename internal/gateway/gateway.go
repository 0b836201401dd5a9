// Package gateway is the thin transport layer between the pipeline
// stages and the hosted inference endpoints. It sends an OpenAI-style
// chat payload to an endpoint URL and hands the raw response body back;
// every fallback decision belongs to the calling stage, not here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingToken is returned when no inference API token is configured.
// It is a fatal configuration error: no network attempt is made.
var ErrMissingToken = errors.New("gateway: inference API token is not configured")

// TransportError wraps an HTTP or network failure talking to a remote
// endpoint. Callers inspect it to apply their own fallback policy; the
// gateway never swallows it.
type TransportError struct {
	Endpoint string
	Status   int    // 0 when the request never got a response
	Body     string // response body, truncated
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s returned HTTP %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("gateway: request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Payload is the request body sent to an inference endpoint. Messages
// reuse the go-openai chat types, which already know how to marshal
// multi-part content (text plus inline base64 image data URIs).
type Payload struct {
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens   int                            `json:"max_tokens,omitempty"`
	Temperature float32                        `json:"temperature,omitempty"`
}

// Config holds the gateway's injected configuration. The token lives for
// the process lifetime; reading it from the environment is the caller's
// business, which keeps test doubles trivial.
type Config struct {
	Token      string
	HTTPClient *http.Client // optional override, e.g. for tests
}

// Client posts payloads to inference endpoints.
type Client struct {
	token string
	httpc *http.Client
}

// New creates a gateway client. It fails fast with ErrMissingToken so a
// misconfigured deployment dies before the first evaluation run.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = defaultHTTPClient()
	}
	return &Client{token: cfg.Token, httpc: httpc}, nil
}

// Hosted models can take a long time to emit the first byte, so the
// header timeout carries the wait instead of an overall client timeout.
// Run-level deadlines come in through the request context.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 120 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   4,
		},
	}
}

// Invoke posts payload to the endpoint URL and returns the raw response
// body. Any HTTP or network failure comes back as a *TransportError,
// logged here with its status and body for diagnosability but otherwise
// untouched.
func (c *Client) Invoke(ctx context.Context, payload Payload, endpoint string) ([]byte, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		slog.Error("inference request failed", "endpoint", endpoint, "error", err)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("inference response read failed", "endpoint", endpoint, "error", err)
		return nil, &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("inference endpoint returned error",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"body", truncate(raw, 512))
		return nil, &TransportError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(raw, 512)}
	}

	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
