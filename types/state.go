package types

// State represents the host processor lifecycle state.
//
// States follow a defined progression:
//
//	StateInit → StateBootstrapping → StateRunning → StateShuttingDown → StateStopped
type State int

const (
	// StateInit is the initial state before any operations.
	StateInit State = iota

	// StateBootstrapping indicates the host is ensuring lease coverage for the feed.
	StateBootstrapping

	// StateRunning indicates the host is acquiring and processing leases.
	StateRunning

	// StateShuttingDown indicates graceful shutdown is in progress.
	StateShuttingDown

	// StateStopped indicates the host released its leases and stopped.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateBootstrapping:
		return "Bootstrapping"
	case StateRunning:
		return "Running"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// LeaseState is the per-lease state tracked by the partition controller.
//
//	Discovered → Acquiring → Owned → Processing → Releasing → Released
//
// Gone is the alternate terminal state reached when the partition split or was retired.
type LeaseState int

const (
	// LeaseStateDiscovered means the lease is known but not yet claimed by this host.
	LeaseStateDiscovered LeaseState = iota

	// LeaseStateAcquiring means an acquire write is in flight.
	LeaseStateAcquiring

	// LeaseStateOwned means this host is the recorded owner.
	LeaseStateOwned

	// LeaseStateProcessing means a supervisor is running for the lease.
	LeaseStateProcessing

	// LeaseStateReleasing means the owner is being cleared.
	LeaseStateReleasing

	// LeaseStateReleased means the lease is no longer held by this host.
	LeaseStateReleased

	// LeaseStateGone means the partition split or disappeared.
	LeaseStateGone
)

// String returns the string representation of the lease state.
func (s LeaseState) String() string {
	switch s {
	case LeaseStateDiscovered:
		return "Discovered"
	case LeaseStateAcquiring:
		return "Acquiring"
	case LeaseStateOwned:
		return "Owned"
	case LeaseStateProcessing:
		return "Processing"
	case LeaseStateReleasing:
		return "Releasing"
	case LeaseStateReleased:
		return "Released"
	case LeaseStateGone:
		return "Gone"
	default:
		return "Unknown"
	}
}
