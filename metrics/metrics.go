// Package metrics collects bridge operation metrics.
package metrics

import "time"

// Metrics defines the interface for collecting bridge metrics.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// IncTransition counts an accepted operation.
	IncTransition(op string)
	// IncRejection counts a rejected operation by error kind.
	IncRejection(op, kind string)
	// AddPayout adds a released reward amount for a leg.
	AddPayout(leg string, amount uint64)
	// IncRollback counts compensating restores after a failed transfer.
	IncRollback(op string)
	// ObserveOpLatency records how long an operation took.
	ObserveOpLatency(op string, d time.Duration)
	// SetQueryCount records the number of queries ever posted.
	SetQueryCount(n uint64)
}
