// Package metrics exposes Prometheus collectors for queries and load jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query results.
const (
	ResultHit     = "hit"
	ResultNothing = "nothing"
	ResultError   = "error"
)

// Metrics groups the service collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	LoadedNodes   *prometheus.GaugeVec
	LoadedOrgs    *prometheus.GaugeVec
	LoadJobs      *prometheus.CounterVec
}

// New builds and registers all collectors. loadStatuses are pre-initialized
// so that rates start at zero instead of being absent.
func New(loadStatuses ...string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxindex_queries_total",
			Help: "Taxonomy queries by operation and result.",
		}, []string{"op", "result"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxindex_query_duration_seconds",
			Help:    "Taxonomy query latency by operation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		LoadedNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taxindex_loaded_nodes",
			Help: "Nodes in the loaded tree per dialect.",
		}, []string{"dialect"}),
		LoadedOrgs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "taxindex_loaded_organisms",
			Help: "Indexed organism codes per dialect.",
		}, []string{"dialect"}),
		LoadJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxindex_load_jobs_total",
			Help: "Finished load jobs by final status.",
		}, []string{"status"}),
	}
	m.reg.MustRegister(m.Queries, m.QueryDuration, m.LoadedNodes, m.LoadedOrgs, m.LoadJobs)
	m.reg.MustRegister(collectors.NewGoCollector())

	for _, s := range loadStatuses {
		m.LoadJobs.WithLabelValues(s).Add(0)
	}
	return m
}

// ObserveQuery counts one query and its latency.
func (m *Metrics) ObserveQuery(op, result string, start time.Time) {
	m.Queries.WithLabelValues(op, result).Inc()
	m.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetLoaded records the size of the tree now served for dialect.
func (m *Metrics) SetLoaded(dialect string, nodes, organisms int) {
	m.LoadedNodes.WithLabelValues(dialect).Set(float64(nodes))
	m.LoadedOrgs.WithLabelValues(dialect).Set(float64(organisms))
}

// JobFinished counts a load job that reached a final status.
func (m *Metrics) JobFinished(status string) {
	m.LoadJobs.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
