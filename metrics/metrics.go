// Package metrics exposes Prometheus counters for assessments, escalations,
// screenings, degraded input, and HTTP traffic.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds configuration for the Collector.
type Config struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Namespace: "sahara", Path: "/metrics"}
}

// Collector owns a private registry with the service's metric vectors. A nil
// *Collector is valid and records nothing.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	Assessments         *prometheus.CounterVec
	Escalations         *prometheus.CounterVec
	Screenings          *prometheus.CounterVec
	DegradedInputs      *prometheus.CounterVec
	SinkFailures        *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Collector with its own Prometheus registry.
func New(cfg Config) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultConfig().Namespace
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	reg := prometheus.NewRegistry()
	ns := cfg.Namespace

	c := &Collector{
		config:   cfg,
		registry: reg,
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "assessments_total",
			Help:      "Messages assessed, by risk level and topic",
		}, []string{"level", "topic"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "escalations_total",
			Help:      "Escalation decisions, by priority and whether they escalated",
		}, []string{"priority", "escalated"}),
		Screenings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "screenings_total",
			Help:      "Scored questionnaires, by questionnaire and severity",
		}, []string{"questionnaire", "severity"}),
		DegradedInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "degraded_inputs_total",
			Help:      "Inputs accepted with a degradation, by component and reason",
		}, []string{"component", "reason"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "audit_sink_failures_total",
			Help:      "Escalation records that failed to publish",
		}, []string{"sink"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		c.Assessments, c.Escalations, c.Screenings, c.DegradedInputs, c.SinkFailures,
		c.HTTPRequestsTotal, c.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Path returns the configured metrics endpoint path.
func (c *Collector) Path() string { return c.config.Path }

// Registry exposes the registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler that serves Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordAssessment counts one assessed message.
func (c *Collector) RecordAssessment(level, topic string) {
	if c == nil {
		return
	}
	c.Assessments.WithLabelValues(level, topic).Inc()
}

// RecordEscalation counts one policy decision.
func (c *Collector) RecordEscalation(priority string, escalated bool) {
	if c == nil {
		return
	}
	c.Escalations.WithLabelValues(priority, strconv.FormatBool(escalated)).Inc()
}

// RecordScreening counts one scored questionnaire.
func (c *Collector) RecordScreening(questionnaire, severity string) {
	if c == nil {
		return
	}
	c.Screenings.WithLabelValues(questionnaire, severity).Inc()
}

// RecordDegraded counts one degraded input.
func (c *Collector) RecordDegraded(component, reason string) {
	if c == nil {
		return
	}
	c.DegradedInputs.WithLabelValues(component, reason).Inc()
}

// RecordSinkFailure counts one failed audit export.
func (c *Collector) RecordSinkFailure(sink string) {
	if c == nil {
		return
	}
	c.SinkFailures.WithLabelValues(sink).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Middleware records every request passing through next. Paths are labelled
// by the matched route pattern to keep cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		c.RecordHTTPRequest(r.Method, path, rw.status, time.Since(start))
	})
}

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack hands the connection to the WebSocket upgrader.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
