// Package metrics records build and deployment counters for one run.
//
// Metrics live on a private registry and are written once at the end of the
// run in Prometheus text format, for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledgerforge"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors of one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookupsTotal      *prometheus.CounterVec
	unitsCompiledTotal     prometheus.Counter
	compileBatchesTotal    *prometheus.CounterVec
	compileDurationSeconds prometheus.Histogram
	deploymentsTotal       *prometheus.CounterVec
	deployDurationSeconds  *prometheus.HistogramVec
}

// New creates Metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of build cache lookups by result",
			},
			[]string{"result"},
		),
		unitsCompiledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_compiled_total",
				Help:      "Total number of units submitted to the compiler",
			},
		),
		compileBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_batches_total",
				Help:      "Total number of compiler invocations by result",
			},
			[]string{"result"},
		),
		compileDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of compiler invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		deploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_total",
				Help:      "Total number of deployments per network by result",
			},
			[]string{"network", "result"},
		),
		deployDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of single deployments in seconds per network",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"network"},
		),
	}
	m.registry.MustRegister(
		m.cacheLookupsTotal,
		m.unitsCompiledTotal,
		m.compileBatchesTotal,
		m.compileDurationSeconds,
		m.deploymentsTotal,
		m.deployDurationSeconds,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCacheLookup counts a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCompileBatch records one compiler invocation over units units.
func (m *Metrics) ObserveCompileBatch(units int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.unitsCompiledTotal.Add(float64(units))
	m.compileBatchesTotal.WithLabelValues(result(err)).Inc()
	m.compileDurationSeconds.Observe(d.Seconds())
}

// ObserveDeployment records one deployment attempt on network.
func (m *Metrics) ObserveDeployment(network string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.deploymentsTotal.WithLabelValues(network, result(err)).Inc()
	m.deployDurationSeconds.WithLabelValues(network).Observe(d.Seconds())
}

// WriteTextfile writes all metrics to path in Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
