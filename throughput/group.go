package throughput

import (
	"fmt"
	"strings"
)

// PriorityLevel is passed through to the request pipeline of a group.
type PriorityLevel int

// Priority levels.
const (
	PriorityUnset PriorityLevel = iota
	PriorityHigh
	PriorityLow
)

// String returns the name of the priority level.
func (p PriorityLevel) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unset"
	}
}

// Group is a throughput control group.
type Group struct {
	// Name identifies the group within its container.
	Name string

	// TargetThroughput is the budget per cycle in request units.
	TargetThroughput float64

	// IsDefault makes the group serve requests that name no registered group.
	IsDefault bool

	// ContinueOnInitError lets a global group fall back to its local budget
	// when the coordinator cannot start.
	ContinueOnInitError bool

	// PriorityLevel is attached to requests of the group that carry none.
	PriorityLevel PriorityLevel

	// Global shares TargetThroughput across every client of the group.
	Global bool
}

// Validate checks the group definition.
//
// Returns:
//   - error: ErrInvalidGroup wrapped with the reason
func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if strings.ContainsAny(g.Name, ". */>") {
		return fmt.Errorf("%w: name %q must not contain '.', '*', '>', '/' or spaces", ErrInvalidGroup, g.Name)
	}
	if g.TargetThroughput <= 0 {
		return fmt.Errorf("%w: group %s: target throughput must be positive", ErrInvalidGroup, g.Name)
	}

	return nil
}
