// Package metrics records pipeline instrumentation in Prometheus collectors
// and exports them as a node-exporter textfile at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

const namespace = "kgeval"

// Metrics holds all pipeline metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Compatibility metrics
	CompatDuration *prometheus.HistogramVec // labels: method
	CompatLinks    prometheus.Gauge
	CompatLookups  *prometheus.CounterVec // labels: result (hit, miss)

	// Qrel metrics
	TriplesProcessed prometheus.Counter
	TripleDuration   prometheus.Histogram
	QrelRows         *prometheus.CounterVec // labels: policy
	QrelConflicts    *prometheus.GaugeVec   // labels: policy

	// Bus metrics
	BusEventsPublished *prometheus.CounterVec   // labels: topic
	BusEventLatency    *prometheus.HistogramVec // labels: topic
	BusErrors          *prometheus.CounterVec   // labels: topic

	// Run metrics
	RunDuration     prometheus.Gauge
	RunLastSuccess  prometheus.Gauge
	DatasetEntities prometheus.Gauge
	DatasetTriples  *prometheus.GaugeVec // labels: split
}

// New creates a new metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CompatDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compat_duration_seconds",
			Help:      "Time spent computing a compatibility table.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"method"}),
		CompatLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compat_links",
			Help:      "Compatible relation pairs in the active table.",
		}),
		CompatLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compat_store_lookups_total",
			Help:      "Compatibility store lookups by result.",
		}, []string{"result"}),

		TriplesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qrels_triples_total",
			Help:      "Triples whose head and tail queries were judged.",
		}),
		TripleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qrels_triple_duration_seconds",
			Help:      "Time to judge both queries of one triple.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		QrelRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qrels_rows_total",
			Help:      "Qrel rows written per policy.",
		}, []string{"policy"}),
		QrelConflicts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qrels_conflicts",
			Help:      "Query-entity pairs judged with differing grades.",
		}, []string{"policy"}),

		BusEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_published_total",
			Help:      "Events published per topic.",
		}, []string{"topic"}),
		BusEventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_publish_duration_seconds",
			Help:      "Publish latency per topic.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		BusErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_errors_total",
			Help:      "Failed publishes per topic.",
		}, []string{"topic"}),

		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		RunLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_last_success_timestamp_seconds",
			Help:      "Unix time the last run finished successfully.",
		}),
		DatasetEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_entities",
			Help:      "Entities in the candidate universe.",
		}),
		DatasetTriples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_triples",
			Help:      "Triples loaded per split.",
		}, []string{"split"}),
	}

	m.registry.MustRegister(
		m.CompatDuration, m.CompatLinks, m.CompatLookups,
		m.TriplesProcessed, m.TripleDuration, m.QrelRows, m.QrelConflicts,
		m.BusEventsPublished, m.BusEventLatency, m.BusErrors,
		m.RunDuration, m.RunLastSuccess, m.DatasetEntities, m.DatasetTriples,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for a promhttp handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCompat records a compatibility table made available to a run.
// The duration is observed only for tables that were computed.
func (m *Metrics) RecordCompat(method string, d time.Duration, links int, cached bool) {
	m.CompatLinks.Set(float64(links))
	if cached {
		m.CompatLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CompatLookups.WithLabelValues("miss").Inc()
	m.CompatDuration.WithLabelValues(method).Observe(d.Seconds())
}

// TripleDone records one aggregated triple.
func (m *Metrics) TripleDone(_ int, elapsed time.Duration) {
	m.TriplesProcessed.Inc()
	m.TripleDuration.Observe(elapsed.Seconds())
}

// RecordQrels records the rows and conflicting pairs written for a policy.
func (m *Metrics) RecordQrels(policy string, rows, conflicts int) {
	m.QrelRows.WithLabelValues(policy).Add(float64(rows))
	m.QrelConflicts.WithLabelValues(policy).Set(float64(conflicts))
}

// RecordBusPublish records a publish attempt.
func (m *Metrics) RecordBusPublish(topic string, latency time.Duration, err error) {
	m.BusEventLatency.WithLabelValues(topic).Observe(latency.Seconds())
	if err != nil {
		m.BusErrors.WithLabelValues(topic).Inc()
		return
	}
	m.BusEventsPublished.WithLabelValues(topic).Inc()
}

// RecordDataset records the size of the loaded dataset.
func (m *Metrics) RecordDataset(entities int, splits map[string]int) {
	m.DatasetEntities.Set(float64(entities))
	for split, n := range splits {
		m.DatasetTriples.WithLabelValues(split).Set(float64(n))
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(d time.Duration, finished time.Time) {
	m.RunDuration.Set(d.Seconds())
	m.RunLastSuccess.Set(float64(finished.Unix()))
}

// WriteTextfile atomically writes all metrics in the text exposition format
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return errors.ConfigError("metrics textfile", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WriteError(path, err)
	}
	return nil
}
