// Package metrics exposes Prometheus instrumentation for resolver
// operations and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/relschema/internal/errs"
	"github.com/koustreak/relschema/internal/resolver"
)

// Metrics holds the collectors. It satisfies resolver.Observer.
type Metrics struct {
	Operations   *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	Rows         *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var _ resolver.Observer = (*Metrics)(nil)

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relschema_operations_total",
			Help: "The total number of resolver operations by outcome",
		}, []string{"op", "entity", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relschema_operation_duration_seconds",
			Help:    "The duration of resolver operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		Rows: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relschema_operation_rows",
			Help:    "The number of rows written, deleted or returned per operation",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		}, []string{"op"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relschema_http_requests_total",
			Help: "The total number of HTTP requests served",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relschema_http_request_duration_seconds",
			Help:    "The latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Observe records one resolver operation.
func (m *Metrics) Observe(op resolver.Operation, entity string, elapsed time.Duration, rows int, err error) {
	status := "ok"
	if err != nil {
		status = errs.KindOf(err).String()
	}
	m.Operations.WithLabelValues(string(op), entity, status).Inc()
	m.Duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	if err == nil {
		m.Rows.WithLabelValues(string(op)).Observe(float64(rows))
	}
}

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
