package centersync

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

	"github.com/cenkalti/backoff/v4"
)

const syncPath = "/api/v1/centers/sync-data/"

const maxAttempts = 5

// ErrRejected marks a 4xx from the dashboard: the payload will never be
// accepted, so delivery stops without retrying.
var ErrRejected = errors.New("sync rejected by dashboard")

type Client struct {
	baseURL    string
	httpClient *http.Client

	retryInitial time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		retryInitial: time.Second,
	}
}

func (c *Client) send(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshaling sync payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+syncPath, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dashboard post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	default:
		return fmt.Errorf("dashboard returned status %d", resp.StatusCode)
	}
}

// Deliver posts the payload, retrying transient failures with exponential
// backoff (1s, 2s, 4s, ... capped at 30s, ±25% jitter) for up to five
// attempts. A 4xx response returns ErrRejected immediately.
func (c *Client) Deliver(ctx context.Context, p *Payload) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.RandomizationFactor = 0.25
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	return backoff.Retry(
		func() error { return c.send(ctx, p) },
		backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx),
	)
}
