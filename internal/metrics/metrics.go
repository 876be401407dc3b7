// Package metrics provides Prometheus metrics for policyrag
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "policyrag"

// Metrics holds all Prometheus metrics. It records engine activity for
// both the index and the web engines.
type Metrics struct {
	AnswersTotal   *prometheus.CounterVec
	RequestsTotal  *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	IndexDocuments prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the metrics on a fresh registry that also carries the Go and
// process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.AnswersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers produced, by engine and answer path",
		},
		[]string{"engine", "path"},
	)

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests, by route pattern and status code",
		},
		[]string{"route", "status"},
	)

	m.SearchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Query encoding plus index search time in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	m.IndexDocuments = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents in the served collection",
		},
	)

	return m
}

// Registry returns the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Answered counts one answer
func (m *Metrics) Answered(engine string, usedModel bool) {
	path := "template"
	if usedModel {
		path = "model"
	}
	m.AnswersTotal.WithLabelValues(engine, path).Inc()
}

// Searched observes one retrieval
func (m *Metrics) Searched(d time.Duration) {
	m.SearchDuration.Observe(d.Seconds())
}

// RecordRequest counts one HTTP request
func (m *Metrics) RecordRequest(route string, status int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// SetIndexDocuments reports the collection size
func (m *Metrics) SetIndexDocuments(n int) {
	m.IndexDocuments.Set(float64(n))
}
