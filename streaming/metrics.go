// Copyright (c) 2025 Neomantra Corp

package streaming

import "sync/atomic"

// Metrics holds observable counters for a running streaming Engine. Safe for
// concurrent reads while the engine is running. Plain atomics rather than a
// metrics library, since no example repo in the corpus wires a metrics
// exporter (Prometheus, statsd) — see DESIGN.md.
type Metrics struct {
	TicksProcessed     atomic.Int64
	BarsEmitted        atomic.Int64
	ProducerErrors     atomic.Int64
	CircuitOpens       atomic.Int64
	CheckpointsTaken   atomic.Int64
	CircuitBreakerOpen atomic.Bool // observable circuit-breaker state (§4.4)
}

// Snapshot is a point-in-time copy of Metrics, safe to log or serialize.
type Snapshot struct {
	TicksProcessed     int64
	BarsEmitted        int64
	ProducerErrors     int64
	CircuitOpens       int64
	CheckpointsTaken   int64
	CircuitBreakerOpen bool
}

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TicksProcessed:     m.TicksProcessed.Load(),
		BarsEmitted:        m.BarsEmitted.Load(),
		ProducerErrors:     m.ProducerErrors.Load(),
		CircuitOpens:       m.CircuitOpens.Load(),
		CheckpointsTaken:   m.CheckpointsTaken.Load(),
		CircuitBreakerOpen: m.CircuitBreakerOpen.Load(),
	}
}
