package metrics

import "time"

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) IncTransition(op string)                     {}
func (m *NopMetrics) IncRejection(op, kind string)                {}
func (m *NopMetrics) AddPayout(leg string, amount uint64)         {}
func (m *NopMetrics) IncRollback(op string)                       {}
func (m *NopMetrics) ObserveOpLatency(op string, d time.Duration) {}
func (m *NopMetrics) SetQueryCount(n uint64)                      {}
