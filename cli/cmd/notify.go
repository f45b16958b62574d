package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ripestream/adapter"
	"github.com/pithecene-io/ripestream/adapter/redis"
	"github.com/pithecene-io/ripestream/adapter/webhook"
	"github.com/pithecene-io/ripestream/cli/config"
	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/runtime"
	"github.com/pithecene-io/ripestream/types"
)

// adapterChoice holds parsed notification adapter configuration.
type adapterChoice struct {
	adapterType     string
	url             string
	channel         string
	headers         map[string]string
	timeout         time.Duration
	retries         int
	latestKeyPrefix string
	latestTTL       time.Duration
}

// parseAdapterConfigWithPrecedence resolves adapter settings, CLI over config.
// Config headers are merged first so --adapter-header can override them.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	ac := &adapterChoice{
		adapterType:     adapterType,
		url:             resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel:         resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		timeout:         resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries:         c.Int("adapter-retries"),
		latestKeyPrefix: resolveString(c, "adapter-latest-key-prefix", configVal(cfg, func(c *config.Config) string { return c.Adapter.LatestKeyPrefix })),
		latestTTL:       resolveDuration(c, "adapter-latest-ttl", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.LatestTTL.Duration })),
	}
	if !c.IsSet("adapter-retries") && cfg != nil && cfg.Adapter.Retries != nil {
		ac.retries = *cfg.Adapter.Retries
	}

	switch adapterType {
	case "webhook", "redis":
	default:
		return nil, fmt.Errorf("unknown adapter type %q\n  Valid options: webhook, redis", adapterType)
	}
	if ac.url == "" {
		return nil, fmt.Errorf("--adapter-url is required when --adapter=%s", adapterType)
	}
	if ac.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", ac.retries)
	}

	headers := make(map[string]string)
	if cfg != nil {
		for k, v := range cfg.Adapter.Headers {
			headers[k] = v
		}
	}
	for _, kv := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q: expected key=value", kv)
		}
		headers[strings.TrimSpace(k)] = v
	}
	if len(headers) > 0 {
		ac.headers = headers
	}

	return ac, nil
}

// buildAdapter constructs the adapter for a parsed choice.
func buildAdapter(ac *adapterChoice) (adapter.Adapter, error) {
	switch ac.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:             ac.url,
			Channel:         ac.channel,
			Timeout:         ac.timeout,
			Retries:         ac.retries,
			LatestKeyPrefix: ac.latestKeyPrefix,
			LatestTTL:       ac.latestTTL,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}

// publishEvent builds the adapter, publishes once (with the adapter's own
// retries) and closes it.
func publishEvent(ctx context.Context, ac *adapterChoice, event *adapter.SessionCompletedEvent) error {
	a, err := buildAdapter(ac)
	if err != nil {
		return err
	}
	pubErr := a.Publish(ctx, event)
	return errors.Join(pubErr, a.Close())
}

// buildSessionCompletedEvent composes the notification for a finished session.
func buildSessionCompletedEvent(result *runtime.SessionResult, snap metrics.Snapshot, sc storageChoice, day string, exitCode int) *adapter.SessionCompletedEvent {
	final := result.Final
	event := &adapter.SessionCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypeSessionCompleted,
		SessionID:       result.Meta.SessionID,
		Source:          result.Meta.Source,
		Day:             day,
		Endpoint:        final.Endpoint,
		Outcome:         string(result.Outcome.Status),
		ExitCode:        exitCode,
		Message:         result.Outcome.Message,
		StopReason:      string(result.StopReason),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		FramesSent:      snap.FramesSent,
		FramesReceived:  final.FramesReceived,
		RecordCount:     result.RecordCount,
		DurationMs:      result.Duration.Milliseconds(),
	}
	if sc.enabled() {
		event.StoragePath = buildStoragePath(sc, sc.dataset, result.Meta.Source, day, result.Meta.SessionID)
	}
	if s := final.Summary; s != nil {
		event.HarvestSuggestion = string(s.HarvestSuggestion)
		event.TotalDetected = s.TotalDetected
	}
	return event
}
