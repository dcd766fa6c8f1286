// Copyright (c) 2025 Neomantra Corp

// Package streaming runs the core Engine against a live TickSource with
// backpressure and circuit breaking (§4.4/§5), handing each closed bar to a
// BarSink as it's produced — atomically, one whole bar at a time, never a
// partial one.
package streaming

import rangebar "github.com/rangebar-go/rangebar"

// BarSink receives closed bars and lifecycle notifications from the
// streaming engine, adapted directly from visitor.go/null_visitor.go's
// Visitor/NullVisitor shape: one method per event, a no-op embeddable
// default so callers only implement what they care about.
type BarSink interface {
	OnBar(bar rangebar.RangeBar) error
	OnCheckpoint(cp rangebar.Checkpoint) error
	OnAnomaly(summary rangebar.AnomalySummary) error
	OnStreamEnd() error
}

// NullSink implements BarSink with all no-ops. Useful for embedding to
// implement only the methods a caller needs.
type NullSink struct{}

func (NullSink) OnBar(rangebar.RangeBar) error          { return nil }
func (NullSink) OnCheckpoint(rangebar.Checkpoint) error { return nil }
func (NullSink) OnAnomaly(rangebar.AnomalySummary) error { return nil }
func (NullSink) OnStreamEnd() error                      { return nil }

// CollectingSink accumulates every bar it receives, in order. Intended for
// tests and small offline runs, not long-lived streaming (unbounded memory).
type CollectingSink struct {
	NullSink
	Bars []rangebar.RangeBar
}

func (s *CollectingSink) OnBar(bar rangebar.RangeBar) error {
	s.Bars = append(s.Bars, bar)
	return nil
}
