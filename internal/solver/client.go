// Package solver is the client side of the external solve capability: it
// submits span lists as JSON and validates the structured solution that
// comes back.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/homeworkai/backend/internal/domain"
)

const (
	defaultTimeout = 120 * time.Second
	maxRetries     = 3
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Request is the solve-capability wire payload.
type Request struct {
	Text []string `json:"text"`
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("solver: empty URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Solve posts the spans and returns the validated solution together with
// the raw response body. Transient upstream failures (429/5xx) are retried
// with exponential backoff; schema violations are not.
func (c *Client) Solve(ctx context.Context, spans []string) (domain.Solution, []byte, error) {
	body, err := json.Marshal(Request{Text: spans})
	if err != nil {
		return domain.Solution{}, nil, fmt.Errorf("solver: encode request: %w", err)
	}

	reqID := uuid.NewString()
	start := time.Now()
	slog.Info("solver request",
		slog.String("req_id", reqID),
		slog.Int("spans", len(spans)),
		slog.Int("content_length", len(body)),
	)

	raw, err := c.send(ctx, body)
	if err != nil {
		slog.Error("solver request failed",
			slog.String("req_id", reqID),
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return domain.Solution{}, nil, err
	}

	slog.Info("solver response",
		slog.String("req_id", reqID),
		slog.Int("bytes", len(raw)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	sol, err := ValidateSolution(raw)
	if err != nil {
		return domain.Solution{}, raw, err
	}
	return sol, raw, nil
}

func (c *Client) send(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		raw, status, err := c.doRequest(ctx, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if status/100 == 2 {
			return raw, nil
		}

		lastErr = fmt.Errorf("solver: status %d: %s", status, truncateBody(raw))
		if !retryable(status) {
			return nil, lastErr
		}
		slog.Warn("solver retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("status", status),
			slog.String("backoff", backoff.String()),
		)
	}

	return nil, fmt.Errorf("solver: giving up after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("solver: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("solver: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("solver: read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncateBody(b []byte) string {
	const limit = 256
	if len(b) > limit {
		b = b[:limit]
	}
	return string(b)
}
