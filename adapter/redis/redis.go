// Package redis publishes session completion events on a Redis channel and
// optionally keeps the latest event per source under a key, so a dashboard
// that connects late can still read the last harvest suggestion.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/ripestream/adapter"
)

const (
	DefaultChannel = "ripestream:session_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// Config configures the adapter. Zero Channel and Timeout take the defaults.
type Config struct {
	// URL is redis://[:password@]host:port[/db].
	URL     string
	Channel string
	Timeout time.Duration
	Retries int
	// LatestKeyPrefix enables SET <prefix><source> alongside each PUBLISH,
	// in the same MULTI.
	LatestKeyPrefix string
	// LatestTTL of zero keeps the latest event forever.
	LatestTTL time.Duration
}

// Adapter publishes session completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates cfg and builds a client. No connection is made until the
// first Publish.
func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("redis adapter requires a URL")
	case cfg.Retries < 0:
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	cfg.Channel = cmp.Or(cfg.Channel, DefaultChannel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the event as JSON to the configured channel. Each attempt
// gets its own Timeout; failures are retried with backoff.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "redis", a.config.Retries, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.publish(attemptCtx, event.Source, body)
	})
}

// publish sends one PUBLISH, pipelined with the latest-key SET when enabled.
func (a *Adapter) publish(ctx context.Context, source string, body []byte) error {
	if a.config.LatestKeyPrefix == "" {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}
	_, err := a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Publish(ctx, a.config.Channel, body)
		pipe.Set(ctx, a.config.LatestKeyPrefix+source, body, a.config.LatestTTL)
		return nil
	})
	return err
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
