package config

import (
	"fmt"
	"net/http"
	"time"
)

// Config represents a ripestream.yaml configuration file.
// All values are optional and act as defaults for ripestream stream flags.
// CLI flags always override config values.
type Config struct {
	BaseURL string            `yaml:"base_url"`
	APIKey  string            `yaml:"api_key"`
	Source  string            `yaml:"source"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Capture CaptureConfig     `yaml:"capture"`
	Timeout TimeoutConfig     `yaml:"timeouts"`
	Storage StorageConfig     `yaml:"storage"`
	Policy  PolicyConfig      `yaml:"policy"`
	Adapter AdapterConfig     `yaml:"adapter"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Log     LogConfig         `yaml:"log"`
}

// CaptureConfig holds frame capture defaults.
type CaptureConfig struct {
	FPS     float64 `yaml:"fps"`
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Quality float64 `yaml:"quality"`
}

// TimeoutConfig holds stream timeout defaults.
type TimeoutConfig struct {
	Connect  Duration `yaml:"connect"`
	Shutdown Duration `yaml:"shutdown"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds recording policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	BufferRecords int      `yaml:"buffer_records"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds notification adapter defaults from the config file.
type AdapterConfig struct {
	Type            string            `yaml:"type"`
	URL             string            `yaml:"url"`
	Channel         string            `yaml:"channel,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Timeout         Duration          `yaml:"timeout,omitempty"`
	Retries         *int              `yaml:"retries,omitempty"`
	LatestKeyPrefix string            `yaml:"latest_key_prefix,omitempty"`
	LatestTTL       Duration          `yaml:"latest_ttl,omitempty"`
}

// MetricsConfig holds the Prometheus exporter address.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// HTTPHeaders converts the configured handshake headers to an http.Header.
func (c *Config) HTTPHeaders() http.Header {
	if len(c.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}
