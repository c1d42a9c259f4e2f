package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssargent/chatlog/pkg/archive"
	"github.com/ssargent/chatlog/pkg/codec"
)

const (
	outcomeDecoded     = "decoded"
	outcomeUndecodable = "undecodable"
	outcomeInvalid     = "invalid"

	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API. Each instance owns its
// registry, so several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	authRequestsTotal *prometheus.CounterVec

	recordsTotal  *prometheus.CounterVec
	segmentsTotal *prometheus.CounterVec

	archiveEntries   prometheus.Gauge
	archivePostings  prometheus.Gauge
	archiveDiskBytes prometheus.Gauge
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatlog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatlog_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		authRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlog_auth_requests_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"status"},
		),

		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlog_records_total",
				Help: "Records submitted for decoding, by outcome",
			},
			[]string{"outcome"},
		),
		segmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlog_segments_total",
				Help: "Decoded message segments, by kind",
			},
			[]string{"kind"},
		),

		archiveEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatlog_archive_entries",
			Help: "Entries stored in the archive",
		}),
		archivePostings: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatlog_archive_postings",
			Help: "Search postings stored in the archive",
		}),
		archiveDiskBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatlog_archive_disk_bytes",
			Help: "Disk space used by the archive in bytes",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAuthRequest records an authentication attempt
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordDecode records the outcome of one record and the segments it produced
func (m *Metrics) RecordDecode(outcome string, entry *codec.Entry) {
	m.recordsTotal.WithLabelValues(outcome).Inc()
	if entry == nil {
		return
	}
	for _, seg := range entry.Message {
		m.segmentsTotal.WithLabelValues(seg.Kind.String()).Inc()
	}
}

// UpdateArchiveStats refreshes the archive gauges
func (m *Metrics) UpdateArchiveStats(stats archive.Stats) {
	m.archiveEntries.Set(float64(stats.Entries))
	m.archivePostings.Set(float64(stats.Postings))
	m.archiveDiskBytes.Set(float64(stats.DiskSize))
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		handler(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(method, endpoint, status, time.Since(start))
	}
}

// InstrumentAuthMiddleware counts authentication outcomes around next
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		wrapped := next(h)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			wrapped.ServeHTTP(ww, r)
			m.RecordAuthRequest(ww.Status() != http.StatusUnauthorized)
		})
	}
}
