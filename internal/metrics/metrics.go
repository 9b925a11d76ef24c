// Package metrics records sync run metrics in a private Prometheus registry.
// Runs are short-lived, so metrics are exported by writing a node_exporter
// textfile rather than serving an endpoint.
package metrics

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/nightsync/pkg/constants"
	"github.com/agentstation/nightsync/pkg/errors"
	"github.com/agentstation/nightsync/pkg/planner"
)

const namespace = "nightsync"

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestTime     *prometheus.HistogramVec
	datasetSize     *prometheus.GaugeVec
	planned         *prometheus.GaugeVec
	lastRun         prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
	lastRunDuration prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Remote mutations attempted, by kind and result.",
		}, []string{"kind", "result"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of remote mutations, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests sent to the remote API, by method and status.",
		}, []string{"method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests sent to the remote API, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		datasetSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_size",
			Help:      "Records seen in the last run: local records, skipped local records, remote datapoints and duplicated dates.",
		}, []string{"dataset"}),
		planned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_operations",
			Help:      "Operations in the last computed plan, by kind.",
		}, []string{"kind"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run applied every operation, 0 otherwise.",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationTime,
		m.requests,
		m.requestTime,
		m.datasetSize,
		m.planned,
		m.lastRun,
		m.lastRunSuccess,
		m.lastRunDuration,
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

// ObserveOperation records one executor operation.
func (m *Metrics) ObserveOperation(kind planner.ChangeType, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(string(kind), result).Inc()
	m.operationTime.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveRequest records one HTTP round trip. Status 0 means the request
// never got a response.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveDataset records the sizes the last run worked with.
func (m *Metrics) ObserveDataset(local, skipped, remote, duplicates int) {
	if m == nil {
		return
	}
	m.datasetSize.WithLabelValues("local").Set(float64(local))
	m.datasetSize.WithLabelValues("local_skipped").Set(float64(skipped))
	m.datasetSize.WithLabelValues("remote").Set(float64(remote))
	m.datasetSize.WithLabelValues("duplicate_dates").Set(float64(duplicates))
}

// ObservePlan records the operation counts of a plan.
func (m *Metrics) ObservePlan(plan *planner.Plan) {
	if m == nil || plan == nil {
		return
	}
	c := plan.Counts()
	m.planned.WithLabelValues(string(planner.ChangeTypeCreate)).Set(float64(c.Creates))
	m.planned.WithLabelValues(string(planner.ChangeTypeUpdate)).Set(float64(c.Updates))
	m.planned.WithLabelValues(string(planner.ChangeTypeDelete)).Set(float64(c.Deletes))
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(finished time.Time, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(finished.Unix()))
	m.lastRunDuration.Set(elapsed.Seconds())
	if success {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes every metric to path in the text exposition format,
// atomically, creating the directory when needed.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
