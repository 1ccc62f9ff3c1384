package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/types"
)

type fakeOwner struct {
	host   string
	tokens []string
}

func (f fakeOwner) HostName() string { return f.host }

func (f fakeOwner) OwnedLeases() []*types.Lease {
	out := make([]*types.Lease, 0, len(f.tokens))
	for _, token := range f.tokens {
		out = append(out, &types.Lease{LeaseToken: token, Owner: f.host})
	}

	return out
}

func TestLeasesConsistent(t *testing.T) {
	want := []string{"0", "1", "2"}

	tests := []struct {
		name   string
		owners []LeaseOwner
		ok     bool
	}{
		{
			name:   "disjoint and complete",
			owners: []LeaseOwner{fakeOwner{"a", []string{"0", "2"}}, fakeOwner{"b", []string{"1"}}},
			ok:     true,
		},
		{
			name:   "owned twice",
			owners: []LeaseOwner{fakeOwner{"a", []string{"0", "1"}}, fakeOwner{"b", []string{"1", "2"}}},
		},
		{
			name:   "missing lease",
			owners: []LeaseOwner{fakeOwner{"a", []string{"0"}}, fakeOwner{"b", []string{"1"}}},
		},
		{
			name:   "unexpected lease",
			owners: []LeaseOwner{fakeOwner{"a", []string{"0", "1", "2", "9"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.ok, LeasesConsistent(tt.owners, want))
		})
	}
}

func TestOwnedTokens(t *testing.T) {
	got := OwnedTokens([]LeaseOwner{fakeOwner{"a", []string{"0"}}, fakeOwner{"b", nil}})
	require.Equal(t, map[string][]string{"a": {"0"}, "b": nil}, got)
}
