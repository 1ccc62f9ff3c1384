package throughput

import (
	"context"
	"fmt"
	"sync"
)

type chargedResponse float64

func (r chargedResponse) RequestCharge() float64 { return float64(r) }

type chargedError struct {
	units float64
}

func (e *chargedError) Error() string           { return fmt.Sprintf("request failed after %.0f units", e.units) }
func (e *chargedError) RequestCharge() float64 { return e.units }

// charge returns a call that succeeds and consumes units.
func charge(units float64) Call {
	return func(context.Context) (Response, error) {
		return chargedResponse(units), nil
	}
}

type decision struct {
	group   string
	allowed bool
}

type recordingMetrics struct {
	mu        sync.Mutex
	decisions []decision
	cycles    map[string]int
}

func (m *recordingMetrics) RecordThroughputRequest(group string, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision{group: group, allowed: allowed})
}

func (m *recordingMetrics) RecordThroughputCycle(group string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cycles == nil {
		m.cycles = make(map[string]int)
	}
	m.cycles[group]++
}

func (m *recordingMetrics) recorded() []decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]decision(nil), m.decisions...)
}

func (m *recordingMetrics) cycleCount(group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cycles[group]
}
