package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/types"
)

func TestNopMetrics_NoPanics(t *testing.T) {
	m := NewNop()

	require.NotPanics(t, func() {
		m.RecordStateTransition(types.StateInit, types.StateRunning)
		m.RecordStateTransition(types.State(999), types.State(1000))
		m.RecordLeaseOperation("acquire", "success")
		m.RecordOwnedLeases(-1)
		m.RecordPartitionSplit(2)
		m.RecordBatch(0, 0)
		m.RecordSupervisorExit(types.CloseReasonStalled)
		m.RecordThroughputRequest("", false)
		m.RecordThroughputCycle("default", 1.5)
	})
}
