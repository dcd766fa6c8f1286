// Copyright (c) 2025 Neomantra Corp

package providers

import (
	"context"
	"io"

	rangebar "github.com/rangebar-go/rangebar"
)

// TimeRangeFilter wraps a TickSource and restricts it to ticks whose
// TimestampUs falls within [startUs, endUs), the same start/end convention
// cmd/dbn-go-hist/main.go applies to its historical date-range flags. A zero
// bound on either side is open-ended.
type TimeRangeFilter struct {
	inner          TickSource
	startUs, endUs int64
}

// NewTimeRangeFilter wraps inner so Next skips ticks before startUs and stops
// (returning io.EOF) once a tick at or after endUs is seen. startUs/endUs of
// zero leave that side unbounded.
func NewTimeRangeFilter(inner TickSource, startUs, endUs int64) *TimeRangeFilter {
	return &TimeRangeFilter{inner: inner, startUs: startUs, endUs: endUs}
}

func (f *TimeRangeFilter) Symbol() string               { return f.inner.Symbol() }
func (f *TimeRangeFilter) DataSource() rangebar.DataSource { return f.inner.DataSource() }
func (f *TimeRangeFilter) Close() error                  { return f.inner.Close() }

// Next returns the next in-range tick, skipping any before startUs and
// signaling io.EOF as soon as one at or past endUs is reached (the
// underlying source is assumed to produce ticks in non-decreasing timestamp
// order, per §2's ordering invariant).
func (f *TimeRangeFilter) Next(ctx context.Context) (rangebar.Tick, error) {
	for {
		t, err := f.inner.Next(ctx)
		if err != nil {
			return rangebar.Tick{}, err
		}
		if f.endUs > 0 && t.TimestampUs >= f.endUs {
			return rangebar.Tick{}, io.EOF
		}
		if f.startUs > 0 && t.TimestampUs < f.startUs {
			continue
		}
		return t, nil
	}
}
