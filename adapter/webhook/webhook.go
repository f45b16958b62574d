// Package webhook POSTs session completion events as JSON.
//
// 5xx responses, 429 and transport failures are retried with backoff; a 429
// Retry-After is honored. Other 4xx responses fail immediately.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pithecene-io/ripestream/adapter"
	"github.com/pithecene-io/ripestream/iox"
	"github.com/pithecene-io/ripestream/types"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3
)

// Headers set on every request so receivers can dedupe redeliveries.
const (
	HeaderEvent     = "X-Ripestream-Event"
	HeaderSessionID = "X-Ripestream-Session-Id"
)

// Config configures the webhook adapter.
type Config struct {
	URL string
	// Headers are added to each request after the defaults, so they may
	// override Content-Type or User-Agent.
	Headers map[string]string
	// Timeout bounds one request, not the whole retry sequence.
	Timeout time.Duration
	Retries int
}

// Adapter publishes events via HTTP POST.
type Adapter struct {
	url     string
	headers http.Header
	retries int
	client  *http.Client
}

// New validates cfg and builds an adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", "ripestream/"+types.Version)
	for k, v := range cfg.Headers {
		h.Set(k, v)
	}

	return &Adapter{
		url:     cfg.URL,
		headers: h,
		retries: cfg.Retries,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish posts the event, retrying as described in the package doc.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "webhook", a.retries, func(ctx context.Context) error {
		err := a.post(ctx, body, event)
		var se *StatusError
		if errors.As(err, &se) && !se.Retriable() {
			return adapter.Permanent(err)
		}
		return err
	})
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	// After is the parsed Retry-After, zero when absent.
	After time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether another attempt may succeed.
func (e *StatusError) Retriable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RetryAfter implements adapter.RetryAfterError.
func (e *StatusError) RetryAfter() time.Duration { return e.After }

func (a *Adapter) post(ctx context.Context, body []byte, event *adapter.SessionCompletedEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = a.headers.Clone()
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderSessionID, event.SessionID)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 == 2 {
		return nil
	}
	return &StatusError{Code: resp.StatusCode, After: parseRetryAfter(resp.Header.Get("Retry-After"))}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
