package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cove_nodes_total",
			Help: "Total number of nodes by status",
		},
		[]string{"status"},
	)

	PodsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cove_pods_total",
			Help: "Total number of pods by phase",
		},
		[]string{"phase"},
	)

	ServicesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cove_services_total",
			Help: "Total number of services",
		},
	)

	VolumesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cove_volumes_total",
			Help: "Total number of persistent volumes",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cove_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cove_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cove_scheduling_latency_seconds",
			Help:    "Time taken to bind a pod to a node in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PodsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cove_pods_scheduled_total",
			Help: "Total number of pods successfully bound to a node",
		},
	)

	SchedulingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cove_scheduling_failures_total",
			Help: "Total number of scheduling cycles with no candidate node",
		},
	)

	// Reconciler / controller metrics
	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cove_reconciliation_duration_seconds",
			Help:    "Time taken for a controller reconcile pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"controller"},
	)

	ReconciliationCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cove_reconciliation_cycles_total",
			Help: "Total number of reconcile passes completed by controller",
		},
		[]string{"controller"},
	)

	// NodePort metrics
	NodePortsAllocated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cove_nodeports_allocated",
			Help: "Number of NodePorts currently allocated",
		},
	)

	NodePortConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cove_nodeport_conflicts_total",
			Help: "Total number of NodePort allocation conflicts",
		},
	)

	// Function metrics
	FunctionInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cove_function_invocations_total",
			Help: "Total number of function invocations by function",
		},
		[]string{"function"},
	)

	FunctionColdStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cove_function_cold_starts_total",
			Help: "Total number of function invocations that had to start the first pod",
		},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		PodsTotal,
		ServicesTotal,
		VolumesTotal,
		APIRequestsTotal,
		APIRequestDuration,
		SchedulingLatency,
		PodsScheduled,
		SchedulingFailures,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		NodePortsAllocated,
		NodePortConflicts,
		FunctionInvocationsTotal,
		FunctionColdStarts,
	)
}

// Handler returns the Prometheus HTTP handler, mounted at /metrics by
// cmd/apiserver, cmd/scheduler and cmd/controller-manager.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
