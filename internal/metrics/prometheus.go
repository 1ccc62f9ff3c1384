package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/leasefeed/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// collector that is never exercised leaves the registerer untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions  *prometheus.CounterVec
	leaseOperations   *prometheus.CounterVec
	ownedLeases       prometheus.Gauge
	partitionSplits   prometheus.Counter
	splitChildren     prometheus.Histogram
	batchSize         prometheus.Histogram
	batchDuration     prometheus.Histogram
	supervisorExits   *prometheus.CounterVec
	throughputReqs    *prometheus.CounterVec
	throughputCycleRU *prometheus.HistogramVec
}

var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metric namespace ("leasefeed" if empty)
//
// Returns:
//   - *PrometheusCollector: MetricsCollector implementation using Prometheus
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewPrometheus(reg, "orders")
//	collector.RecordOwnedLeases(3)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "leasefeed"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "host",
			Name:      "state_transitions_total",
			Help:      "Host state transitions by source and target state.",
		}, []string{"from", "to"})

		p.leaseOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "operations_total",
			Help:      "Lease operations by operation and result.",
		}, []string{"op", "result"})

		p.ownedLeases = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "owned",
			Help:      "Number of leases currently processed by this host.",
		})

		p.partitionSplits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "partition_splits_total",
			Help:      "Partition splits handled by this host.",
		})

		p.splitChildren = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lease",
			Name:      "split_children",
			Help:      "Number of child ranges produced per handled split.",
			Buckets:   []float64{0, 1, 2, 3, 4, 8},
		})

		p.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "processor",
			Name:      "batch_size",
			Help:      "Number of changes per delivered batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		})

		p.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "processor",
			Name:      "batch_duration_seconds",
			Help:      "Observer processing time per batch in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms .. ~3.8s
		})

		p.supervisorExits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "processor",
			Name:      "supervisor_exits_total",
			Help:      "Partition supervisor exits by close reason.",
		}, []string{"reason"})

		p.throughputReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "throughput",
			Name:      "requests_total",
			Help:      "Throughput control decisions by group and outcome.",
		}, []string{"group", "allowed"})

		p.throughputCycleRU = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "throughput",
			Name:      "cycle_used_ratio",
			Help:      "Fraction of the scheduled throughput consumed per cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1, 1.25, 1.5, 2},
		}, []string{"group"})

		p.reg.MustRegister(
			p.stateTransitions,
			p.leaseOperations,
			p.ownedLeases,
			p.partitionSplits,
			p.splitChildren,
			p.batchSize,
			p.batchDuration,
			p.supervisorExits,
			p.throughputReqs,
			p.throughputCycleRU,
		)
	})
}

// RecordStateTransition counts a host state transition.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordLeaseOperation counts a lease operation outcome.
func (p *PrometheusCollector) RecordLeaseOperation(operation, result string) {
	p.ensureRegistered()
	p.leaseOperations.WithLabelValues(operation, result).Inc()
}

// RecordOwnedLeases sets the owned lease gauge.
func (p *PrometheusCollector) RecordOwnedLeases(count int) {
	p.ensureRegistered()
	p.ownedLeases.Set(float64(count))
}

// RecordPartitionSplit counts a split and observes its child count.
func (p *PrometheusCollector) RecordPartitionSplit(children int) {
	p.ensureRegistered()
	p.partitionSplits.Inc()
	p.splitChildren.Observe(float64(children))
}

// RecordBatch observes batch size and processing latency.
func (p *PrometheusCollector) RecordBatch(size int, duration float64) {
	p.ensureRegistered()
	p.batchSize.Observe(float64(size))
	p.batchDuration.Observe(duration)
}

// RecordSupervisorExit counts a supervisor exit.
func (p *PrometheusCollector) RecordSupervisorExit(reason types.CloseReason) {
	p.ensureRegistered()
	p.supervisorExits.WithLabelValues(reason.String()).Inc()
}

// RecordThroughputRequest counts a throughput control decision.
func (p *PrometheusCollector) RecordThroughputRequest(group string, allowed bool) {
	p.ensureRegistered()
	p.throughputReqs.WithLabelValues(group, strconv.FormatBool(allowed)).Inc()
}

// RecordThroughputCycle observes the consumed ratio of a finished cycle.
func (p *PrometheusCollector) RecordThroughputCycle(group string, usedRatio float64) {
	p.ensureRegistered()
	p.throughputCycleRU.WithLabelValues(group).Observe(usedRatio)
}
