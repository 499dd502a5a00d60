// Package metrics exports Prometheus metrics for rendered view files.
package metrics

import (
	"context"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-viewrender/pkg/webview"
)

// Config configures the metrics listener.
type Config struct {
	// Namespace is the metrics namespace (default: "viewrender").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// Buckets are the histogram buckets for render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the metrics listener.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "viewrender",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Listener records a counter and a duration histogram per rendered file. The
// file label is the base name without extension so label cardinality stays
// bounded by the number of templates.
type Listener struct {
	rendersTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	outputBytes    *prometheus.HistogramVec
}

var _ webview.Listener = (*Listener)(nil)

// New registers the metrics and returns the listener.
func New(opts ...Option) *Listener {
	config := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	factory := promauto.With(config.Registry)

	return &Listener{
		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "renders_total",
			Help:      "Total number of rendered view files",
		}, []string{"file", "status"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "render_duration_seconds",
			Help:      "View file render duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"file"}),

		outputBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "render_output_bytes",
			Help:      "Size of rendered view output in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"file"}),
	}
}

// AfterRender implements webview.Listener.
func (l *Listener) AfterRender(_ context.Context, event webview.AfterRender) {
	file := Label(event.File)
	status := "success"
	if event.Err != nil {
		status = "error"
	}
	l.rendersTotal.WithLabelValues(file, status).Inc()
	l.renderDuration.WithLabelValues(file).Observe(event.Duration.Seconds())
	if event.Err == nil {
		l.outputBytes.WithLabelValues(file).Observe(float64(len(event.Output)))
	}
}

// Label maps a file path to its metric label: "/views/site/index.tpl"
// becomes "site/index".
func Label(file string) string {
	file = strings.TrimSuffix(file, path.Ext(file))
	dir, name := path.Split(file)
	parent := path.Base(strings.TrimRight(dir, "/"))
	if parent == "." || parent == "/" || parent == "" {
		return name
	}
	return parent + "/" + name
}
