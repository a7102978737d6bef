package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/l2refresh/internal/sampler"
	"github.com/objectfs/l2refresh/pkg/errors"
)

// Collector records sampling activity in a private Prometheus registry. It
// implements dispatch.Observer.
type Collector struct {
	mu       sync.Mutex
	config   *Config
	registry *prometheus.Registry

	filesCounter     *prometheus.CounterVec
	samplesCounter   prometheus.Counter
	mappedBytes      prometheus.Counter
	stopReasons      *prometheus.CounterVec
	errorCounter     *prometheus.CounterVec
	sampleDuration   prometheus.Histogram
	activeSamplers   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge

	summary Summary

	server   *http.Server
	listener net.Listener
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

// Summary is an in-process view of what the collector has seen.
type Summary struct {
	Files       int64            `json:"files"`
	Failed      int64            `json:"failed"`
	Samples     int64            `json:"samples"`
	MappedBytes int64            `json:"mapped_bytes"`
	StopReasons map[string]int64 `json:"stop_reasons"`
	Errors      map[string]int64 `json:"errors"`
	Busy        time.Duration    `json:"busy"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "l2refresh",
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	c := &Collector{
		config: config,
		summary: Summary{
			StopReasons: make(map[string]int64),
			Errors:      make(map[string]int64),
		},
	}
	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()
	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

// Registry returns the collector registry, nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Start serves the registry over HTTP when a port is configured. The
// listener is bound before Start returns.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled || c.config.Port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}
	c.listener = ln
	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		_ = c.server.Serve(ln)
	}()
	return nil
}

// Handler exposes the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Addr returns the bound metrics address, empty when not serving.
func (c *Collector) Addr() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Stop stops the metrics server
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector. The write is atomic.
func (c *Collector) WriteTextfile(path string) error {
	if !c.config.Enabled || path == "" {
		return nil
	}
	c.lastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, c.registry)
}

// OnFileStart implements dispatch.Observer.
func (c *Collector) OnFileStart(string) {
	if !c.config.Enabled {
		return
	}
	c.activeSamplers.Inc()
}

// OnFileDone implements dispatch.Observer.
func (c *Collector) OnFileDone(_ string, res sampler.Result, err error, d time.Duration) {
	c.mu.Lock()
	c.summary.Files++
	c.summary.Busy += d
	if err != nil {
		c.summary.Failed++
		c.summary.Errors[string(errors.GetCode(err))]++
	} else {
		c.summary.Samples += res.Samples
		c.summary.MappedBytes += res.Size
		c.summary.StopReasons[string(res.StopReason)]++
	}
	c.mu.Unlock()

	if !c.config.Enabled {
		return
	}

	c.activeSamplers.Dec()
	c.sampleDuration.Observe(d.Seconds())
	if err != nil {
		c.filesCounter.WithLabelValues("error").Inc()
		c.errorCounter.WithLabelValues(string(errors.GetCode(err))).Inc()
		return
	}
	c.filesCounter.WithLabelValues("ok").Inc()
	c.samplesCounter.Add(float64(res.Samples))
	c.mappedBytes.Add(float64(res.Size))
	c.stopReasons.WithLabelValues(string(res.StopReason)).Inc()
}

// Summary returns a copy of the in-process counters.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.summary
	s.StopReasons = make(map[string]int64, len(c.summary.StopReasons))
	for k, v := range c.summary.StopReasons {
		s.StopReasons[k] = v
	}
	s.Errors = make(map[string]int64, len(c.summary.Errors))
	for k, v := range c.summary.Errors {
		s.Errors[k] = v
	}
	return s
}

func (c *Collector) initMetrics() {
	ns := c.config.Namespace
	labels := prometheus.Labels(c.config.Labels)

	c.filesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "files_total",
			Help:        "Files processed, by outcome",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	c.samplesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "samples_total",
		Help:        "Random single-byte reads issued",
		ConstLabels: labels,
	})

	c.mappedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Name:        "mapped_bytes_total",
		Help:        "Total size of files mapped for sampling",
		ConstLabels: labels,
	})

	c.stopReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "stop_reason_total",
			Help:        "Sampling runs by the bound that ended them",
			ConstLabels: labels,
		},
		[]string{"reason"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "errors_total",
			Help:        "Per-file errors by code",
			ConstLabels: labels,
		},
		[]string{"code"},
	)

	c.sampleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Name:        "file_sample_duration_seconds",
		Help:        "Wall time spent sampling one file",
		Buckets:     prometheus.ExponentialBuckets(0.001, 2, 17), // 1ms to ~65s
		ConstLabels: labels,
	})

	c.activeSamplers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "active_samplers",
		Help:        "Files currently being sampled",
		ConstLabels: labels,
	})

	c.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the metrics were last exported",
		ConstLabels: labels,
	})
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.filesCounter,
		c.samplesCounter,
		c.mappedBytes,
		c.stopReasons,
		c.errorCounter,
		c.sampleDuration,
		c.activeSamplers,
		c.lastRunTimestamp,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}
