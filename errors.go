// Copyright (c) 2025 Neomantra Corp

package rangebar

import "fmt"

// Sentinel errors for the engine's input-validation and fatal-failure
// classes (§7). Mirrors the teacher's errors.go: package-level sentinel
// vars for the simple cases, typed structs below for errors that carry
// structured context.
var (
	ErrEmptyBatch        = fmt.Errorf("rangebar: empty batch")
	ErrSymbolMismatch    = fmt.Errorf("rangebar: checkpoint symbol does not match engine symbol")
	ErrThresholdMismatch = fmt.Errorf("rangebar: checkpoint threshold does not match engine threshold")
	ErrMissingThresholds = fmt.Errorf("rangebar: checkpoint has an in-progress bar but no threshold pair")
	ErrCircuitOpen       = fmt.Errorf("rangebar: circuit breaker open")
	ErrCheckpointVersion = fmt.Errorf("rangebar: unsupported checkpoint version")
)

// UnsortedTradesError is returned by ProcessBatch/ProcessOne when a tick
// violates the (timestamp_us, agg_trade_id) ordering invariant. Index is
// the position of the offending tick within the batch passed to
// ProcessBatch (0 for ProcessOne, which only ever sees one tick).
type UnsortedTradesError struct {
	Index int
	Prev  Tick
	Curr  Tick
}

func (e *UnsortedTradesError) Error() string {
	return fmt.Sprintf("rangebar: unsorted trades at index %d: prev=(ts=%d,id=%d) curr=(ts=%d,id=%d)",
		e.Index, e.Prev.TimestampUs, e.Prev.AggTradeID, e.Curr.TimestampUs, e.Curr.AggTradeID)
}

// OverflowErrorKind distinguishes which accumulator overflowed.
type OverflowErrorKind string

const (
	OverflowKind_Volume   OverflowErrorKind = "volume"
	OverflowKind_Turnover OverflowErrorKind = "turnover"
)

// OverflowError is returned when accumulating a tick into the current bar
// would overflow volume or turnover. It is fatal for the symbol: the engine
// that returns it must not be reused (§7).
type OverflowError struct {
	Kind   OverflowErrorKind
	Symbol string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("rangebar: overflow accumulating %s for symbol %s", e.Kind, e.Symbol)
}

// CheckpointError wraps a checkpoint restore failure with the symbol and
// underlying cause, so callers can log which symbol's checkpoint was
// rejected without parsing the error string.
type CheckpointError struct {
	Symbol string
	Cause  error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("rangebar: checkpoint restore failed for symbol %s: %v", e.Symbol, e.Cause)
}

func (e *CheckpointError) Unwrap() error {
	return e.Cause
}
