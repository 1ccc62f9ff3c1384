package types

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// LeaseVersion is the discriminant selecting the persisted lease variant.
type LeaseVersion int

const (
	// LeaseVersionPartitionKeyRange leases are keyed by the source's range ID.
	LeaseVersionPartitionKeyRange LeaseVersion = 0

	// LeaseVersionEPKRange leases are keyed by effective key bounds.
	LeaseVersionEPKRange LeaseVersion = 1
)

// String returns the string representation of the lease version.
func (v LeaseVersion) String() string {
	switch v {
	case LeaseVersionPartitionKeyRange:
		return "PartitionKeyRange"
	case LeaseVersionEPKRange:
		return "EPKRange"
	default:
		return "Unknown"
	}
}

// Lease is the persisted ownership record for one range of the change feed.
//
// Ownership is enforced optimistically: every write goes through a
// read-check-write cycle guarded by ConcurrencyToken, and the owner check is
// repeated against the current server copy before each mutation.
type Lease struct {
	// ID is the stable document key (prefix + hash of LeaseToken).
	ID string

	// Version selects the persisted variant.
	Version LeaseVersion

	// LeaseToken identifies the governed range; immutable once set.
	LeaseToken string

	// FeedRange holds the key bounds (EPK variant) or the range ID (PK variant).
	FeedRange FeedRange

	// Owner is the host currently holding the lease ("" when unowned).
	Owner string

	// ContinuationToken is the last checkpointed position in the range.
	ContinuationToken string

	// ConcurrencyToken is the store version of this copy; not serialized.
	ConcurrencyToken string

	// Properties is host-defined metadata carried across owner hand-offs.
	Properties map[string]string

	// Timestamp is the last write time, for diagnostics only.
	Timestamp time.Time
}

// Clone returns a deep copy of the lease.
func (l *Lease) Clone() *Lease {
	if l == nil {
		return nil
	}

	c := *l
	c.Properties = maps.Clone(l.Properties)
	if l.FeedRange.Parents != nil {
		c.FeedRange.Parents = append([]string(nil), l.FeedRange.Parents...)
	}

	return &c
}

// OwnedBy reports whether host is the recorded owner.
func (l *Lease) OwnedBy(host string) bool {
	return l.Owner != "" && l.Owner == host
}

// Range returns the feed range the lease governs, as understood by a ChangeFeedSource.
func (l *Lease) Range() FeedRange {
	if l.Version == LeaseVersionEPKRange {
		return FeedRange{ID: l.FeedRange.ID, Min: l.FeedRange.Min, Max: l.FeedRange.Max}
	}

	return FeedRange{ID: l.LeaseToken}
}

// String returns a compact description for logs.
func (l *Lease) String() string {
	return fmt.Sprintf("%s Owner='%s' Continuation='%s' Timestamp(local)=%s",
		l.LeaseToken, l.Owner, l.ContinuationToken, l.Timestamp.Local().Format(time.RFC3339))
}

// pkRangeLeaseDocument is the wire shape of a partition-key-range lease.
type pkRangeLeaseDocument struct {
	ID                string            `json:"id"`
	Version           LeaseVersion      `json:"version"`
	LeaseToken        string            `json:"leaseToken"`
	Owner             string            `json:"owner,omitempty"`
	ContinuationToken string            `json:"continuationToken,omitempty"`
	Properties        map[string]string `json:"properties,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// epkRangeLeaseDocument is the wire shape of an EPK-range lease.
type epkRangeLeaseDocument struct {
	pkRangeLeaseDocument

	FeedRange FeedRange `json:"feedRange"`
}

// Encode serializes the lease in the shape selected by its Version.
//
// Returns:
//   - []byte: JSON document
//   - error: ErrUnknownLeaseVersion or marshal error
func (l *Lease) Encode() ([]byte, error) {
	base := pkRangeLeaseDocument{
		ID:                l.ID,
		Version:           l.Version,
		LeaseToken:        l.LeaseToken,
		Owner:             l.Owner,
		ContinuationToken: l.ContinuationToken,
		Properties:        l.Properties,
		Timestamp:         l.Timestamp.UTC(),
	}

	switch l.Version {
	case LeaseVersionPartitionKeyRange:
		return json.Marshal(base)
	case LeaseVersionEPKRange:
		return json.Marshal(epkRangeLeaseDocument{
			pkRangeLeaseDocument: base,
			FeedRange:            FeedRange{ID: l.FeedRange.ID, Min: l.FeedRange.Min, Max: l.FeedRange.Max},
		})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLeaseVersion, l.Version)
	}
}

// DecodeLease deserializes a lease document.
//
// The version discriminant is read first and selects the concrete decoding path.
//
// Parameters:
//   - data: JSON document as stored
//   - concurrencyToken: Store version of the document
//
// Returns:
//   - *Lease: Decoded lease
//   - error: ErrUnknownLeaseVersion or unmarshal error
func DecodeLease(data []byte, concurrencyToken string) (*Lease, error) {
	var probe struct {
		Version LeaseVersion `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to read lease version: %w", err)
	}

	var (
		base      pkRangeLeaseDocument
		feedRange FeedRange
	)

	switch probe.Version {
	case LeaseVersionPartitionKeyRange:
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("failed to decode partition key range lease: %w", err)
		}
		feedRange = FeedRange{ID: base.LeaseToken}
	case LeaseVersionEPKRange:
		var doc epkRangeLeaseDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode EPK range lease: %w", err)
		}
		base = doc.pkRangeLeaseDocument
		feedRange = doc.FeedRange
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLeaseVersion, probe.Version)
	}

	return &Lease{
		ID:                base.ID,
		Version:           base.Version,
		LeaseToken:        base.LeaseToken,
		FeedRange:         feedRange,
		Owner:             base.Owner,
		ContinuationToken: base.ContinuationToken,
		ConcurrencyToken:  concurrencyToken,
		Properties:        base.Properties,
		Timestamp:         base.Timestamp,
	}, nil
}
