package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/types"
)

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "test")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordLeaseOperation("acquire", "success")
	p.RecordLeaseOperation("acquire", "success")
	p.RecordLeaseOperation("acquire", "lost")
	p.RecordOwnedLeases(3)
	p.RecordPartitionSplit(2)
	p.RecordSupervisorExit(types.CloseReasonLeaseGone)
	p.RecordThroughputRequest("default", false)
	p.RecordStateTransition(types.StateInit, types.StateBootstrapping)

	require.InDelta(t, 2, testutil.ToFloat64(p.leaseOperations.WithLabelValues("acquire", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.leaseOperations.WithLabelValues("acquire", "lost")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(p.ownedLeases), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.partitionSplits), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.supervisorExits.WithLabelValues("LeaseGone")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.throughputReqs.WithLabelValues("default", "false")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.stateTransitions.WithLabelValues("Init", "Bootstrapping")), 0)
}

func TestNewPrometheus_Defaults(t *testing.T) {
	p := NewPrometheus(nil, "")
	require.Equal(t, prometheus.DefaultRegisterer, p.reg)
	require.Equal(t, "leasefeed", p.namespace)
}
