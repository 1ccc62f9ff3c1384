package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	HostMetrics
	LeaseMetrics
	ProcessorMetrics
	ThroughputMetrics
}

// HostMetrics defines metrics for host-level lifecycle.
type HostMetrics interface {
	// RecordStateTransition records a host state transition event.
	RecordStateTransition(from, to State)
}

// LeaseMetrics defines metrics for lease operations.
type LeaseMetrics interface {
	// RecordLeaseOperation records the outcome of a lease operation.
	//
	// Parameters:
	//   - operation: "acquire", "release", "renew", "checkpoint", "update_properties", "delete", "create"
	//   - result: "success", "lost", "conflict", "error"
	RecordLeaseOperation(operation, result string)

	// RecordOwnedLeases sets the number of leases processed by this host (gauge metric).
	RecordOwnedLeases(count int)

	// RecordPartitionSplit records a handled split and the number of children.
	RecordPartitionSplit(children int)
}

// ProcessorMetrics defines metrics for partition processing.
type ProcessorMetrics interface {
	// RecordBatch records one delivered batch.
	//
	// Parameters:
	//   - size: Number of changes in the batch
	//   - duration: Observer processing time in seconds
	RecordBatch(size int, duration float64)

	// RecordSupervisorExit records why a partition supervisor stopped.
	RecordSupervisorExit(reason CloseReason)
}

// ThroughputMetrics defines metrics for throughput control groups.
type ThroughputMetrics interface {
	// RecordThroughputRequest records a request decision for a group.
	//
	// Parameters:
	//   - group: Throughput control group name
	//   - allowed: false when the request was rejected
	RecordThroughputRequest(group string, allowed bool)

	// RecordThroughputCycle records the consumed fraction of a finished cycle.
	RecordThroughputCycle(group string, usedRatio float64)
}
