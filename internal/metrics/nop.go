// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/leasefeed/types"

// NopMetrics discards all metrics.
type NopMetrics struct{}

var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a no-op metrics collector.
//
// Returns:
//   - *NopMetrics: Collector that records nothing
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {}

// RecordLeaseOperation discards the lease operation metric.
func (n *NopMetrics) RecordLeaseOperation(_ /* operation */, _ /* result */ string) {}

// RecordOwnedLeases discards the owned lease gauge.
func (n *NopMetrics) RecordOwnedLeases(_ /* count */ int) {}

// RecordPartitionSplit discards the split metric.
func (n *NopMetrics) RecordPartitionSplit(_ /* children */ int) {}

// RecordBatch discards the batch metric.
func (n *NopMetrics) RecordBatch(_ /* size */ int, _ /* duration */ float64) {}

// RecordSupervisorExit discards the supervisor exit metric.
func (n *NopMetrics) RecordSupervisorExit(_ /* reason */ types.CloseReason) {}

// RecordThroughputRequest discards the throughput request metric.
func (n *NopMetrics) RecordThroughputRequest(_ /* group */ string, _ /* allowed */ bool) {}

// RecordThroughputCycle discards the throughput cycle metric.
func (n *NopMetrics) RecordThroughputCycle(_ /* group */ string, _ /* usedRatio */ float64) {}
