package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/ripestream/cli/config"
	"github.com/pithecene-io/ripestream/cli/tui"
	"github.com/pithecene-io/ripestream/encoder"
	"github.com/pithecene-io/ripestream/iox"
	"github.com/pithecene-io/ripestream/lode"
	"github.com/pithecene-io/ripestream/log"
	"github.com/pithecene-io/ripestream/metrics"
	"github.com/pithecene-io/ripestream/policy"
	"github.com/pithecene-io/ripestream/runtime"
	"github.com/pithecene-io/ripestream/source"
	"github.com/pithecene-io/ripestream/stream"
	"github.com/pithecene-io/ripestream/types"
)

// finalizeTimeout bounds the metrics write and notification after a session.
const finalizeTimeout = 30 * time.Second

// StreamCommand returns the stream command.
// This is the only command that contacts the inference gateway.
func StreamCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to ripestream.yaml (default: ./ripestream.yaml when present)",
		},
		// Gateway flags
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "Inference gateway base URL (http or https)",
			Value: stream.DefaultBaseURL,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key sent as X-API-Key on the handshake",
			EnvVars: []string{"RIPESTREAM_API_KEY"},
		},
		&cli.StringSliceFlag{
			Name:  "header",
			Usage: "Extra handshake header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "connect-timeout",
			Usage: "Bound on the WebSocket handshake",
			Value: 5 * time.Second,
		},
		&cli.DurationFlag{
			Name:  "shutdown-timeout",
			Usage: "Wait for the session summary after end of stream",
			Value: stream.DefaultShutdownTimeout,
		},
		// Session flags
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source label used for partitioning and logs (required)",
		},
		&cli.StringFlag{
			Name:  "session-id",
			Usage: "Session ID (default: generated UUID)",
		},
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Stop gracefully after this long (0 = until interrupted)",
		},
		&cli.Int64Flag{
			Name:  "max-frames",
			Usage: "Stop gracefully after N frame results (0 = unlimited)",
		},
		// Capture flags
		&cli.StringFlag{
			Name:  "frames-dir",
			Usage: "Directory of images to stream in name order (default: synthetic test pattern)",
		},
		&cli.BoolFlag{
			Name:  "loop",
			Usage: "Restart the image sequence when it runs out",
		},
		&cli.Float64Flag{
			Name:  "fps",
			Usage: "Target capture rate (effective max 20)",
			Value: stream.DefaultFPS,
		},
		&cli.IntFlag{
			Name:  "width",
			Usage: "Encoded frame width",
			Value: encoder.DefaultWidth,
		},
		&cli.IntFlag{
			Name:  "height",
			Usage: "Encoded frame height",
			Value: encoder.DefaultHeight,
		},
		&cli.Float64Flag{
			Name:  "quality",
			Usage: "JPEG quality factor in [0, 1]",
			Value: encoder.DefaultQuality,
		},
		// Recording flags
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Recording policy: strict, buffered, streaming, noop (default: strict with storage, noop without)",
		},
		&cli.IntFlag{
			Name:  "buffer-records",
			Usage: "Max buffered records (buffered policy)",
		},
		&cli.Int64Flag{
			Name:  "buffer-bytes",
			Usage: "Max buffer size in bytes (buffered policy)",
		},
		&cli.IntFlag{
			Name:  "flush-count",
			Usage: "Flush after N records (streaming policy)",
		},
		&cli.DurationFlag{
			Name:  "flush-interval",
			Usage: "Flush every interval (streaming policy)",
		},
	}
	flags = append(flags, storageFlags()...)
	flags = append(flags,
		// Notification flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notify on session end: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis://host:port URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt notification timeout",
			Value: 10 * time.Second,
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Notification retry attempts",
			Value: 3,
		},
		&cli.StringFlag{
			Name:  "adapter-latest-key-prefix",
			Usage: "Redis key prefix for storing the latest event per source",
		},
		&cli.DurationFlag{
			Name:  "adapter-latest-ttl",
			Usage: "Expiry for the latest-event key (0 = none)",
		},
		// Output flags
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus /metrics on this address while streaming",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show a live dashboard (q stops the session)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON session report to this path (- for stderr)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
	)

	return &cli.Command{
		Name:   "stream",
		Usage:  "Stream frames to the inference gateway and record the results",
		Flags:  flags,
		Action: streamAction,
	}
}

// policyChoice holds parsed policy configuration.
type policyChoice struct {
	name          string
	maxRecords    int
	maxBytes      int64
	flushCount    int
	flushInterval time.Duration
}

// captureChoice holds parsed capture configuration.
type captureChoice struct {
	framesDir string
	loop      bool
	fps       float64
	opts      encoder.Options
}

func streamAction(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}

	sourceLabel := resolveString(c, "source", configVal(cfg, func(c *config.Config) string { return c.Source }))
	if sourceLabel == "" {
		return cli.Exit("--source is required\n  Set --source or source: in ripestream.yaml", runtime.ExitCodeSetupFailure)
	}
	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sc := parseStorageChoice(c, cfg)
	if sc.enabled() {
		if err := validateStorageConfig(sc); err != nil {
			return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
		}
	}

	choice := parsePolicyChoice(c, cfg, sc.enabled())
	if err := validatePolicyConfig(choice); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}
	if choice.name != "noop" && !sc.enabled() {
		return cli.Exit(fmt.Sprintf("--policy %s requires storage\n  Set --storage-path or storage.path in ripestream.yaml", choice.name), runtime.ExitCodeSetupFailure)
	}

	capture := parseCaptureChoice(c, cfg)
	if err := validateCaptureConfig(capture); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}

	headers, err := parseHeaders(c.StringSlice("header"), configVal(cfg, func(c *config.Config) map[string]string { return c.Headers }), "--header")
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}

	var notify *adapterChoice
	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })); adapterType != "" {
		ac, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
		}
		notify = ac
	}

	meta := &types.SessionMeta{SessionID: sessionID, Source: sourceLabel}

	logLevel := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level }))
	if logLevel == "" && c.Bool("tui") {
		// Keep the dashboard readable.
		logLevel = "error"
	}
	logger, err := log.NewLoggerWithLevel(meta, os.Stderr, logLevel)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}
	defer iox.DiscardErr(logger.Sync)

	backendLabel := sc.backend
	if backendLabel == "" {
		backendLabel = "none"
	}
	collector := metrics.NewCollector(choice.name, backendLabel, sessionID, sourceLabel)

	// Start time is "now"; used to derive the partition day.
	startTime := time.Now()
	day := lode.DeriveDay(startTime)

	var sink *lode.Sink
	if sc.enabled() {
		sink, err = buildLodeSink(c.Context, sc, lode.Config{
			Dataset:   sc.dataset,
			Source:    sourceLabel,
			Day:       day,
			SessionID: sessionID,
			Policy:    choice.name,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open storage: %v", err), runtime.ExitCodeSetupFailure)
		}
	}

	pol, err := buildPolicy(choice, sink, collector, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create policy: %v", err), runtime.ExitCodeSetupFailure)
	}
	defer iox.WarnClose(pol, logger.Warn, "policy")

	frames, err := buildFrameSource(capture)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}

	if addr := resolveString(c, "metrics-addr", configVal(cfg, func(c *config.Config) string { return c.Metrics.Addr })); addr != "" {
		exporter := metrics.NewExporter(collector)
		bound, err := exporter.Listen(addr)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to serve metrics on %s: %v", addr, err), runtime.ExitCodeSetupFailure)
		}
		logger.Info("serving metrics", map[string]any{"addr": bound})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
	}

	var feed *tui.LiveFeed
	if c.Bool("tui") {
		feed = tui.NewLiveFeed()
	}

	sessionConfig := &runtime.SessionConfig{
		Meta: meta,
		Stream: stream.Config{
			BaseURL:         resolveString(c, "base-url", configVal(cfg, func(c *config.Config) string { return c.BaseURL })),
			APIKey:          resolveString(c, "api-key", configVal(cfg, func(c *config.Config) string { return c.APIKey })),
			Headers:         headers,
			ConnectTimeout:  resolveDuration(c, "connect-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Timeout.Connect.Duration })),
			ShutdownTimeout: resolveDuration(c, "shutdown-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Timeout.Shutdown.Duration })),
		},
		Source:    frames,
		FPS:       capture.fps,
		Encoder:   capture.opts,
		Policy:    pol,
		Collector: collector,
		Logger:    logger,
		Duration:  c.Duration("duration"),
		MaxFrames: c.Int64("max-frames"),
	}
	if feed != nil {
		sessionConfig.Observer = feed
	}

	orchestrator, err := runtime.NewSessionOrchestrator(sessionConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create orchestrator: %v", err), runtime.ExitCodeSetupFailure)
	}

	// Set up context with signal handling. Cancellation asks the session
	// to stop gracefully.
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	// stopSession ends the session gracefully without tearing down the
	// dashboard, which exits once the outcome is known.
	sessionCtx, stopSession := context.WithCancel(ctx)
	defer stopSession()

	var g errgroup.Group
	var result *runtime.SessionResult
	g.Go(func() error {
		res, err := orchestrator.Execute(sessionCtx)
		if feed != nil {
			if err != nil {
				feed.Finish(string(types.OutcomeSetupFailure), err.Error())
			} else {
				feed.Finish(string(res.Outcome.Status), res.Outcome.Message)
			}
		}
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		result = res
		return nil
	})
	if feed != nil {
		g.Go(func() error {
			if err := tui.RunLive(ctx, feed, stopSession, os.Stdin, os.Stdout); err != nil {
				logger.Warn("live view failed", map[string]any{"error": err.Error()})
				stopSession()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeSetupFailure)
	}

	snap := collector.Snapshot()
	exitCode := runtime.ExitCodeFor(result.Outcome.Status)

	finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(c.Context), finalizeTimeout)
	defer finalCancel()

	if sink != nil {
		if err := sink.WriteMetrics(finalCtx, snap, time.Now()); err != nil {
			logger.Warn("failed to write session metrics", map[string]any{"error": err.Error()})
		}
	}

	if notify != nil {
		event := buildSessionCompletedEvent(result, snap, sc, day, exitCode)
		if err := publishEvent(finalCtx, notify, event); err != nil {
			logger.Warn("failed to publish session event", map[string]any{
				"adapter": notify.adapterType,
				"error":   err.Error(),
			})
		}
	}

	if path := c.String("report"); path != "" {
		report := runtime.BuildSessionReport(result, snap, choice.name, exitCode)
		if err := runtime.WriteSessionReport(report, path); err != nil {
			logger.Warn("failed to write session report", map[string]any{"path": path, "error": err.Error()})
		}
	}

	if !c.Bool("quiet") && !c.Bool("tui") {
		printSessionResult(c.App.Writer, result, choice)
	}

	return cli.Exit("", exitCode)
}

// parsePolicyChoice applies precedence and picks the default policy:
// strict when storage is configured, noop otherwise.
func parsePolicyChoice(c *cli.Context, cfg *config.Config, storage bool) policyChoice {
	choice := policyChoice{
		name:          resolveString(c, "policy", configVal(cfg, func(c *config.Config) string { return c.Policy.Name })),
		maxRecords:    resolveInt(c, "buffer-records", configVal(cfg, func(c *config.Config) int { return c.Policy.BufferRecords })),
		maxBytes:      resolveInt64(c, "buffer-bytes", configVal(cfg, func(c *config.Config) int64 { return c.Policy.BufferBytes })),
		flushCount:    resolveInt(c, "flush-count", configVal(cfg, func(c *config.Config) int { return c.Policy.FlushCount })),
		flushInterval: resolveDuration(c, "flush-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Policy.FlushInterval.Duration })),
	}
	if choice.name == "" {
		choice.name = "noop"
		if storage {
			choice.name = "strict"
		}
	}
	return choice
}

func validatePolicyConfig(choice policyChoice) error {
	switch choice.name {
	case "strict", "noop":
		if choice.maxRecords > 0 || choice.maxBytes > 0 || choice.flushCount > 0 || choice.flushInterval > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer/flush flags ignored for %s policy\n", choice.name)
		}
		return nil

	case "buffered":
		if choice.maxRecords < 0 || choice.maxBytes < 0 {
			return errors.New("buffer limits must be >= 0")
		}
		if choice.maxRecords == 0 && choice.maxBytes == 0 {
			return errors.New("buffered policy requires buffer limits\n  Set --buffer-records or --buffer-bytes")
		}
		if choice.flushCount > 0 || choice.flushInterval > 0 {
			fmt.Fprintf(os.Stderr, "Warning: flush flags ignored for buffered policy\n")
		}
		return nil

	case "streaming":
		if choice.flushCount < 0 {
			return errors.New("--flush-count must be >= 0")
		}
		if choice.flushCount == 0 && choice.flushInterval <= 0 {
			return errors.New("streaming policy requires a flush trigger\n  Set --flush-count or --flush-interval")
		}
		if choice.maxRecords > 0 || choice.maxBytes > 0 {
			fmt.Fprintf(os.Stderr, "Warning: buffer flags ignored for streaming policy\n")
		}
		return nil

	default:
		return fmt.Errorf("invalid --policy %q\n  Valid options: strict, buffered, streaming, noop", choice.name)
	}
}

// buildPolicy wires the recording policy. A nil sink is only valid for noop.
func buildPolicy(choice policyChoice, sink *lode.Sink, collector *metrics.Collector, logger *log.Logger) (policy.Policy, error) {
	if choice.name == "noop" {
		return policy.NewNoopPolicy(), nil
	}
	if sink == nil {
		return nil, fmt.Errorf("policy %s requires a storage sink", choice.name)
	}
	instrumented := lode.NewInstrumentedSink(sink, collector)

	switch choice.name {
	case "strict":
		return policy.NewStrictPolicy(instrumented), nil

	case "buffered":
		return policy.NewBufferedPolicy(instrumented, policy.BufferedConfig{
			MaxBufferRecords: choice.maxRecords,
			MaxBufferBytes:   choice.maxBytes,
			Logger:           logger,
		})

	case "streaming":
		return policy.NewStreamingPolicy(instrumented, policy.StreamingConfig{
			FlushCount:     choice.flushCount,
			FlushInterval:  choice.flushInterval,
			FlushOnSummary: true,
			Logger:         logger,
		})

	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}

// buildLodeSink creates a Lode sink for the configured backend.
func buildLodeSink(ctx context.Context, sc storageChoice, cfg lode.Config) (*lode.Sink, error) {
	var client lode.Client
	var err error

	switch sc.backend {
	case "fs":
		client, err = lode.NewLodeClient(cfg, sc.path)
	case "s3":
		client, err = lode.NewLodeS3Client(ctx, cfg, sc.s3Config())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", sc.backend)
	}
	if err != nil {
		return nil, err
	}

	return lode.NewSink(cfg, client), nil
}

func parseCaptureChoice(c *cli.Context, cfg *config.Config) captureChoice {
	return captureChoice{
		framesDir: c.String("frames-dir"),
		loop:      c.Bool("loop"),
		fps:       resolveFloat(c, "fps", configVal(cfg, func(c *config.Config) float64 { return c.Capture.FPS })),
		opts: encoder.Options{
			Width:   resolveInt(c, "width", configVal(cfg, func(c *config.Config) int { return c.Capture.Width })),
			Height:  resolveInt(c, "height", configVal(cfg, func(c *config.Config) int { return c.Capture.Height })),
			Quality: resolveFloat(c, "quality", configVal(cfg, func(c *config.Config) float64 { return c.Capture.Quality })),
		},
	}
}

func validateCaptureConfig(cc captureChoice) error {
	if cc.fps <= 0 {
		return fmt.Errorf("--fps must be > 0, got %v", cc.fps)
	}
	if err := cc.opts.Validate(); err != nil {
		return fmt.Errorf("invalid capture settings: %w", err)
	}
	return nil
}

// buildFrameSource returns the image sequence when --frames-dir is set and
// the synthetic test pattern otherwise.
func buildFrameSource(cc captureChoice) (encoder.FrameSource, error) {
	if cc.framesDir == "" {
		return source.NewPattern(cc.opts.Width, cc.opts.Height, 0), nil
	}
	seq, err := source.NewImageSequence(cc.framesDir, cc.loop)
	if err != nil {
		return nil, fmt.Errorf("invalid --frames-dir %q: %w", cc.framesDir, err)
	}
	return seq, nil
}

// parseHeaders merges config headers with key=value flag values. Flags win.
func parseHeaders(values []string, fromConfig map[string]string, flagName string) (http.Header, error) {
	if len(values) == 0 && len(fromConfig) == 0 {
		return nil, nil
	}
	h := make(http.Header, len(values)+len(fromConfig))
	for k, v := range fromConfig {
		h.Set(k, v)
	}
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid %s %q: expected key=value", flagName, kv)
		}
		h.Set(strings.TrimSpace(k), v)
	}
	return h, nil
}

func printSessionResult(w io.Writer, result *runtime.SessionResult, choice policyChoice) {
	if w == nil {
		w = os.Stdout
	}
	final := result.Final

	fmt.Fprintf(w, "\nsession_id=%s, source=%s, outcome=%s, duration=%s\n",
		result.Meta.SessionID,
		result.Meta.Source,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	fmt.Fprintf(w, "\n=== Session Result ===\n")
	fmt.Fprintf(w, "Session ID:   %s\n", result.Meta.SessionID)
	fmt.Fprintf(w, "Endpoint:     %s\n", final.Endpoint)
	fmt.Fprintf(w, "Outcome:      %s\n", result.Outcome.Status)
	fmt.Fprintf(w, "Message:      %s\n", result.Outcome.Message)
	if result.StopReason != runtime.StopReasonNone {
		fmt.Fprintf(w, "Stop Reason:  %s\n", result.StopReason)
	}
	fmt.Fprintf(w, "Frames:       %d\n", final.FramesReceived)
	if final.ModelVersion != nil {
		fmt.Fprintf(w, "Model:        %s\n", *final.ModelVersion)
	}
	if final.SchemaVersion != nil {
		fmt.Fprintf(w, "Schema:       %s\n", *final.SchemaVersion)
	}

	if s := final.Summary; s != nil {
		fmt.Fprintf(w, "\n=== Summary ===\n")
		fmt.Fprintf(w, "Detected:     %d\n", s.TotalDetected)
		fmt.Fprintf(w, "Ratio:        red=%.2f half=%.2f green=%.2f young=%.2f\n",
			s.RipenessRatio.Red, s.RipenessRatio.Half, s.RipenessRatio.Green, s.RipenessRatio.Young)
		fmt.Fprintf(w, "Suggestion:   %s\n", s.HarvestSuggestion)
	}

	fmt.Fprintf(w, "\n=== Recording ===\n")
	fmt.Fprintf(w, "Policy:            %s\n", choice.name)
	fmt.Fprintf(w, "Records Total:     %d\n", result.PolicyStats.TotalRecords)
	fmt.Fprintf(w, "Records Persisted: %d\n", result.PolicyStats.RecordsPersisted)
	fmt.Fprintf(w, "Records Dropped:   %d\n", result.PolicyStats.RecordsDropped)
	fmt.Fprintf(w, "Flushes:           %d\n", result.PolicyStats.FlushCount)
}
