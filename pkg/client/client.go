// Package client provides a streaming client for OpenAI-compatible
// chat-completions endpoints such as the xAI API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/grokterm/pkg/chat"
)

// DefaultBaseURL is the xAI API root.
const DefaultBaseURL = "https://api.x.ai/v1"

// HTTPError is returned when the endpoint answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Body)
	if hint := statusHint(e.StatusCode); hint != "" {
		msg += " | hint: " + hint
	}
	return msg
}

// Options configures a Client.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// New creates a Client for baseURL (e.g. "https://api.x.ai/v1")
// authenticating with apiKey as a bearer token.
func New(baseURL, apiKey string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
	// No overall timeout: a streamed answer may legitimately take minutes.
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// doRequest builds and executes a single POST with a JSON body.
func (c *Client) doRequest(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			respBody = []byte("(failed to read response body)")
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Chat completions
// ---------------------------------------------------------------------------

// CompleteStream sends req with streaming enabled and returns the chunk
// stream. Request-level failures (connectivity, auth, rate limits) are
// returned as errors; retryable ones are retried with exponential backoff
// before giving up.
func (c *Client) CompleteStream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	c.logger.Debug("sending completion request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Tools)),
		zap.Int("bytes", len(body)),
	)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info("retrying completion request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, "/chat/completions", body)
		if err == nil {
			return NewStream(resp.Body, c.logger), nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// isRetryable reports whether err is a transient endpoint failure.
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
}

// statusHint returns remediation text for well-known failure statuses.
func statusHint(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "check that GROK_API_KEY (or XAI_API_KEY) holds a valid key"
	case http.StatusNotFound:
		return "check the API base URL and model name"
	case http.StatusTooManyRequests:
		return "rate limited; wait and retry"
	default:
		return ""
	}
}
