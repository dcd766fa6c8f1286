// Copyright (c) 2025 Neomantra Corp

package batch

import (
	"math"

	rangebar "github.com/rangebar-go/rangebar"
	"github.com/rangebar-go/rangebar/streaming"
)

// AnalysisReport holds running descriptive statistics over a symbol's closed
// bars, computed with Welford's online algorithm (§A.3) rather than a
// two-pass sum-then-variance approach, so the batch engine never has to hold
// a symbol's full bar set in memory to report mean/variance.
type AnalysisReport struct {
	Symbol string

	count int64
	mean  float64
	m2    float64 // sum of squared deviations from the running mean

	Min float64
	Max float64
}

// NewAnalysisReport starts an empty report for `symbol`.
func NewAnalysisReport(symbol string) *AnalysisReport {
	return &AnalysisReport{Symbol: symbol}
}

// Observe folds one more sample (e.g. a bar's log-return, duration, or
// volume) into the running statistics.
func (r *AnalysisReport) Observe(x float64) {
	r.count++
	if r.count == 1 {
		r.Min, r.Max = x, x
	} else {
		if x < r.Min {
			r.Min = x
		}
		if x > r.Max {
			r.Max = x
		}
	}
	delta := x - r.mean
	r.mean += delta / float64(r.count)
	delta2 := x - r.mean
	r.m2 += delta * delta2
}

// Count returns the number of observations folded in so far.
func (r *AnalysisReport) Count() int64 { return r.count }

// Mean returns the running mean, or 0 if no observations were made.
func (r *AnalysisReport) Mean() float64 { return r.mean }

// Variance returns the sample variance (Bessel-corrected), or 0 with fewer
// than 2 observations.
func (r *AnalysisReport) Variance() float64 {
	if r.count < 2 {
		return 0
	}
	return r.m2 / float64(r.count-1)
}

// StdDev returns the sample standard deviation.
func (r *AnalysisReport) StdDev() float64 {
	v := r.Variance()
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// SymbolStats bundles the three descriptive-statistics categories §4.5
// requires per symbol (price, volume, bar duration) plus the total bar
// count, rather than a single undifferentiated AnalysisReport.
type SymbolStats struct {
	Symbol   string
	Price    *AnalysisReport
	Volume   *AnalysisReport
	Duration *AnalysisReport
	BarCount int64
}

// NewSymbolStats starts a fresh, empty SymbolStats for `symbol`.
func NewSymbolStats(symbol string) *SymbolStats {
	return &SymbolStats{
		Symbol:   symbol,
		Price:    NewAnalysisReport(symbol),
		Volume:   NewAnalysisReport(symbol),
		Duration: NewAnalysisReport(symbol),
	}
}

// Observe folds one closed bar's close price, volume, and duration into the
// three running reports.
func (s *SymbolStats) Observe(bar rangebar.RangeBar) {
	s.BarCount++
	s.Price.Observe(float64(bar.Close.Scaled()) / float64(rangebar.Scale))
	s.Volume.Observe(float64(bar.Volume.Scaled()) / float64(rangebar.Scale))
	s.Duration.Observe(float64(bar.CloseTimeUs - bar.OpenTimeUs))
}

// statsSink is a streaming.BarSink that feeds every closed bar into a
// SymbolStats, following the same embed-NullSink shape as
// streaming.CollectingSink so it can be fanned out alongside the caller's
// real sink via chainSinks/multiSink.
type statsSink struct {
	streaming.NullSink
	stats *SymbolStats
}

func newStatsSink(symbol string) *statsSink {
	return &statsSink{stats: NewSymbolStats(symbol)}
}

func (s *statsSink) OnBar(bar rangebar.RangeBar) error {
	s.stats.Observe(bar)
	return nil
}
