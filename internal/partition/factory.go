package partition

import (
	"time"

	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/types"
)

// SupervisorFactoryConfig configures the supervisors created by NewSupervisorFactory.
type SupervisorFactoryConfig struct {
	Processor     ProcessorConfig
	Supervisor    SupervisorConfig
	RenewInterval time.Duration
}

// NewSupervisorFactory returns a RunnerFactory that builds a Supervisor with
// a fresh observer, processor and renewer for every lease.
//
// Parameters:
//   - source: Change feed
//   - leases: Lease manager used to checkpoint and renew
//   - observers: Creates one observer per lease
//   - cfg: Processor, liveness and renewal settings
//   - logger: Logger; each supervisor logs with the lease owner attached
//   - metrics: Processor metrics
//
// Returns:
//   - RunnerFactory: Factory for the Controller
func NewSupervisorFactory(
	source types.ChangeFeedSource,
	leases LeaseManager,
	observers types.ObserverFactory,
	cfg SupervisorFactoryConfig,
	logger types.Logger,
	metrics types.ProcessorMetrics,
) RunnerFactory {
	return RunnerFactoryFunc(func(l *types.Lease) Runner {
		leaseLogger := logging.With(logger, "owner", l.Owner)
		observer := observers.CreateObserver()
		processor := NewProcessor(l, source, leases, observer, cfg.Processor, leaseLogger, metrics)
		renewer := NewRenewer(l, leases, cfg.RenewInterval, leaseLogger)

		return NewSupervisor(l, observer, processor, renewer, cfg.Supervisor, leaseLogger, metrics)
	})
}
