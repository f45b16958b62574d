package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `base_url: https://infer.example.com
api_key: key-123
source: orchard-a
headers:
  X-Farm: north

capture:
  fps: 8
  width: 1280
  height: 720
  quality: 0.6

timeouts:
  connect: 3s
  shutdown: 2500ms

storage:
  dataset: ripestream
  backend: s3
  path: my-bucket/prefix
  region: ap-southeast-1
  endpoint: https://example.com
  s3_path_style: true

policy:
  name: buffered
  buffer_records: 500
  buffer_bytes: 10485760
  flush_count: 50
  flush_interval: 2s

adapter:
  type: webhook
  url: https://hooks.example.com/ripestream
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3

metrics:
  addr: ":9464"

log:
  level: debug
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "base_url", cfg.BaseURL, "https://infer.example.com")
	assertEqual(t, "api_key", cfg.APIKey, "key-123")
	assertEqual(t, "source", cfg.Source, "orchard-a")
	if got := cfg.HTTPHeaders().Get("X-Farm"); got != "north" {
		t.Errorf("headers X-Farm = %q, want north", got)
	}

	if cfg.Capture.FPS != 8 || cfg.Capture.Width != 1280 || cfg.Capture.Height != 720 || cfg.Capture.Quality != 0.6 {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Timeout.Connect.Duration != 3*time.Second {
		t.Errorf("timeouts.connect = %v, want 3s", cfg.Timeout.Connect.Duration)
	}
	if cfg.Timeout.Shutdown.Duration != 2500*time.Millisecond {
		t.Errorf("timeouts.shutdown = %v, want 2.5s", cfg.Timeout.Shutdown.Duration)
	}

	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "ap-southeast-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}

	assertEqual(t, "policy.name", cfg.Policy.Name, "buffered")
	if cfg.Policy.BufferRecords != 500 {
		t.Errorf("expected buffer_records=500, got %d", cfg.Policy.BufferRecords)
	}
	if cfg.Policy.BufferBytes != 10485760 {
		t.Errorf("expected buffer_bytes=10485760, got %d", cfg.Policy.BufferBytes)
	}
	if cfg.Policy.FlushCount != 50 || cfg.Policy.FlushInterval.Duration != 2*time.Second {
		t.Errorf("flush = %d/%v, want 50/2s", cfg.Policy.FlushCount, cfg.Policy.FlushInterval.Duration)
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/ripestream")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("expected adapter.retries=3")
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization header")
	}

	assertEqual(t, "metrics.addr", cfg.Metrics.Addr, ":9464")
	assertEqual(t, "log.level", cfg.Log.Level, "debug")
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("expected empty source, got %q", cfg.Source)
	}
	if cfg.HTTPHeaders() != nil {
		t.Error("expected nil headers")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/ripestream.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SOURCE", "expanded-source")
	t.Setenv("RIPESTREAM_API_KEY", "")

	yaml := "source: ${TEST_SOURCE}\napi_key: ${RIPESTREAM_API_KEY:-fallback}\n"
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "source", cfg.Source, "expanded-source")
	assertEqual(t, "api_key", cfg.APIKey, "fallback")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `source: my-source
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `storage:
  backend: fs
  path: ./data
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("expected empty source, got %q", cfg.Source)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("expected empty source, got %q", cfg.Source)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
  retries: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil {
		t.Fatal("expected retries to be non-nil (*int(0)), got nil")
	}
	if *cfg.Adapter.Retries != 0 {
		t.Errorf("expected retries=0, got %d", *cfg.Adapter.Retries)
	}
}

func TestLoad_RetriesOmittedIsNil(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("expected retries to be nil, got %d", *cfg.Adapter.Retries)
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `adapter:
  timeout: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_NegativeRejected(t *testing.T) {
	path := writeTemp(t, "timeouts:\n  connect: -1s\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	yaml := `adapter:
  type: webhook
  url: https://example.com
  timeout: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Timeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoad_RedisAdapterConfig(t *testing.T) {
	yaml := `adapter:
  type: redis
  url: redis://localhost:6379/0
  channel: ripestream:session_completed
  latest_key_prefix: "ripestream:latest:"
  latest_ttl: 24h
  timeout: 5s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.type", cfg.Adapter.Type, "redis")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "redis://localhost:6379/0")
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "ripestream:session_completed")
	assertEqual(t, "adapter.latest_key_prefix", cfg.Adapter.LatestKeyPrefix, "ripestream:latest:")
	if cfg.Adapter.LatestTTL.Duration != 24*time.Hour {
		t.Errorf("expected adapter.latest_ttl=24h, got %v", cfg.Adapter.LatestTTL.Duration)
	}
	if cfg.Adapter.Timeout.Duration != 5*time.Second {
		t.Errorf("expected adapter.timeout=5s, got %v", cfg.Adapter.Timeout.Duration)
	}
}

func TestLoadOptional(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional without file: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("expected empty config, got source %q", cfg.Source)
	}

	if err := os.WriteFile(DefaultPath, []byte("source: from-default\n"), 0o644); err != nil {
		t.Fatalf("write default config: %v", err)
	}
	cfg, err = LoadOptional("")
	if err != nil {
		t.Fatalf("LoadOptional with default file: %v", err)
	}
	assertEqual(t, "source", cfg.Source, "from-default")

	if _, err := LoadOptional("missing.yaml"); err == nil {
		t.Fatal("expected error for explicit missing path")
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ripestream.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}

func TestLoad_RequiredEnvMissing(t *testing.T) {
	path := writeTemp(t, "api_key: ${RS_TEST_MISSING_KEY:?export the gateway API key}\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing required env var")
	}
	if !strings.Contains(err.Error(), "export the gateway API key") {
		t.Errorf("error should carry the message, got: %v", err)
	}
}
