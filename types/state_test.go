package types

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "Init"},
		{StateBootstrapping, "Bootstrapping"},
		{StateRunning, "Running"},
		{StateShuttingDown, "ShuttingDown"},
		{StateStopped, "Stopped"},
		{State(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeaseStateString(t *testing.T) {
	tests := []struct {
		state LeaseState
		want  string
	}{
		{LeaseStateDiscovered, "Discovered"},
		{LeaseStateAcquiring, "Acquiring"},
		{LeaseStateOwned, "Owned"},
		{LeaseStateProcessing, "Processing"},
		{LeaseStateReleasing, "Releasing"},
		{LeaseStateReleased, "Released"},
		{LeaseStateGone, "Gone"},
		{LeaseState(-1), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("LeaseState.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
