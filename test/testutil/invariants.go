package testutil

import (
	"testing"

	"github.com/arloliu/leasefeed/types"
)

// LeaseOwner is the subset of Processor methods the lease assertions need.
type LeaseOwner interface {
	HostName() string
	OwnedLeases() []*types.Lease
}

// OwnedTokens returns the lease tokens owned by each host.
func OwnedTokens(owners []LeaseOwner) map[string][]string {
	out := make(map[string][]string, len(owners))
	for _, o := range owners {
		var tokens []string
		for _, l := range o.OwnedLeases() {
			tokens = append(tokens, l.LeaseToken)
		}
		out[o.HostName()] = tokens
	}

	return out
}

// LeasesConsistent reports whether every token in want is owned by exactly
// one host and no host owns a token outside want.
func LeasesConsistent(owners []LeaseOwner, want []string) bool {
	expected := make(map[string]struct{}, len(want))
	for _, token := range want {
		expected[token] = struct{}{}
	}

	seen := make(map[string]struct{}, len(want))
	for _, tokens := range OwnedTokens(owners) {
		for _, token := range tokens {
			if _, ok := expected[token]; !ok {
				return false
			}
			if _, dup := seen[token]; dup {
				return false
			}
			seen[token] = struct{}{}
		}
	}

	return len(seen) == len(expected)
}

// AssertLeasesConsistent fails the test unless the leases in want are
// distributed without overlap across owners.
//
// Parameters:
//   - t: testing handle
//   - owners: Processors sharing one lease bucket
//   - want: Lease tokens of every live range
func AssertLeasesConsistent(t *testing.T, owners []LeaseOwner, want []string) {
	t.Helper()

	if !LeasesConsistent(owners, want) {
		t.Fatalf("inconsistent lease distribution: %v, want each of %v owned exactly once", OwnedTokens(owners), want)
	}
}
