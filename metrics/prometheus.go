package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "ripestream"

	defaultReadHeaderTimeout = 10 * time.Second
)

type counterDesc struct {
	desc  *prometheus.Desc
	value func(Snapshot) int64
}

// PromCollector exposes a Collector's snapshot as Prometheus counters.
// Values are read at scrape time, so the Collector stays the single
// source of truth.
type PromCollector struct {
	source    *Collector
	counters  []counterDesc
	envelopes *prometheus.Desc
}

// NewPromCollector wraps c for registration with a Prometheus registry.
func NewPromCollector(c *Collector) *PromCollector {
	labels := []string{"source", "policy", "storage_backend"}
	counter := func(name, help string, value func(Snapshot) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil),
			value: value,
		}
	}

	return &PromCollector{
		source: c,
		counters: []counterDesc{
			counter("sessions_started_total", "Sessions that reached streaming", func(s Snapshot) int64 { return s.SessionsStarted }),
			counter("sessions_stopped_total", "Sessions that settled in stopped", func(s Snapshot) int64 { return s.SessionsStopped }),
			counter("sessions_errored_total", "Sessions that settled in error", func(s Snapshot) int64 { return s.SessionsErrored }),
			counter("connect_failures_total", "Connection attempts that failed", func(s Snapshot) int64 { return s.ConnectFailures }),
			counter("connect_timeouts_total", "Connection attempts that timed out", func(s Snapshot) int64 { return s.ConnectTimeouts }),
			counter("shutdown_timeouts_total", "Stops forced closed before a summary arrived", func(s Snapshot) int64 { return s.ShutdownTimeouts }),
			counter("frames_sent_total", "Encoded frames transmitted", func(s Snapshot) int64 { return s.FramesSent }),
			counter("frames_skipped_total", "Capture cycles with no frame to send", func(s Snapshot) int64 { return s.FramesSkipped }),
			counter("bytes_sent_total", "Encoded frame bytes transmitted", func(s Snapshot) int64 { return s.BytesSent }),
			counter("ticks_coalesced_total", "Capture ticks folded into a pending cycle", func(s Snapshot) int64 { return s.TicksCoalesced }),
			counter("decode_errors_total", "Inbound messages that failed to decode", func(s Snapshot) int64 { return s.DecodeErrors }),
			counter("transport_errors_total", "Transport errors reported by the connection", func(s Snapshot) int64 { return s.TransportErrors }),
			counter("lode_write_success_total", "Successful dataset write calls", func(s Snapshot) int64 { return s.LodeWriteSuccess }),
			counter("lode_write_failure_total", "Failed dataset write calls", func(s Snapshot) int64 { return s.LodeWriteFailure }),
		},
		envelopes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "envelopes_total"),
			"Classified inbound envelopes by type",
			append(labels, "type"), nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (p *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	ch <- p.envelopes
}

// Collect implements prometheus.Collector.
func (p *PromCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.source.Snapshot()
	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(s)),
			s.Source, s.Policy, s.StorageBackend)
	}
	for typ, n := range s.EnvelopesByType {
		ch <- prometheus.MustNewConstMetric(p.envelopes, prometheus.CounterValue, float64(n),
			s.Source, s.Policy, s.StorageBackend, typ)
	}
}

// Exporter serves a session's metrics over HTTP at /metrics.
type Exporter struct {
	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
}

// NewExporter creates an exporter for c, including Go runtime metrics.
func NewExporter(c *Collector) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPromCollector(c))
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Exporter{registry: reg}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the /metrics handler.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Listen binds addr and serves in the background. Returns the bound
// address, which differs from addr when addr uses port 0.
func (e *Exporter) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	e.mu.Lock()
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: defaultReadHeaderTimeout}
	srv := e.server
	e.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown stops the HTTP server if it is running.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil {
		return nil
	}
	err := e.server.Shutdown(ctx)
	e.server = nil
	return err
}
