// Copyright (c) 2025 Neomantra Corp

package rangebar

import (
	"github.com/cespare/xxhash/v2"
)

// priceWindowCapacity is the fixed size of the circular buffer of recent
// prices hashed into a checkpoint's witness value (§3.5 item 7).
const priceWindowCapacity = 8

// priceWindow is a bounded circular buffer of recent scaled prices, used to
// produce a cheap 64-bit "did we actually stop where we say we did" witness
// hash. It is not a correctness mechanism — a deliberately weak, cheap
// check, per spec.
type priceWindow struct {
	buf  [priceWindowCapacity]int64
	n    int // number of valid entries, up to capacity
	next int // next write position
}

func (w *priceWindow) push(priceScaled int64) {
	w.buf[w.next] = priceScaled
	w.next = (w.next + 1) % priceWindowCapacity
	if w.n < priceWindowCapacity {
		w.n++
	}
}

// hash returns an xxhash64 over the window's entries in oldest-to-newest
// order. Recomputed on demand rather than maintained incrementally — it's
// only consulted at checkpoint time, not per tick.
func (w *priceWindow) hash() uint64 {
	digest := xxhash.New()
	start := (w.next - w.n + priceWindowCapacity) % priceWindowCapacity
	var scratch [8]byte
	for i := 0; i < w.n; i++ {
		idx := (start + i) % priceWindowCapacity
		v := uint64(w.buf[idx])
		for b := 0; b < 8; b++ {
			scratch[b] = byte(v >> (8 * b))
		}
		_, _ = digest.Write(scratch[:])
	}
	return digest.Sum64()
}

// snapshot returns the window's valid entries, oldest first, for
// serialization into a Checkpoint.
func (w *priceWindow) snapshot() []int64 {
	out := make([]int64, w.n)
	start := (w.next - w.n + priceWindowCapacity) % priceWindowCapacity
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(start+i)%priceWindowCapacity]
	}
	return out
}

func priceWindowFromSnapshot(entries []int64) priceWindow {
	var w priceWindow
	for _, v := range entries {
		w.push(v)
	}
	return w
}

// CheckpointVersion is the explicit version tag required by §6.2 item 2, so
// a future implementation can reject an incompatible format.
const CheckpointVersion uint32 = 1

// Checkpoint is an immutable, serializable snapshot of an Engine's state,
// written when a processing segment ends without a breach (§3.5). See
// checkpointio.go for the on-disk encoding.
type Checkpoint struct {
	Version uint32

	Symbol           string
	ThresholdTenthBp uint32

	// InProgressBar is nil if no bar was open when the checkpoint was taken.
	InProgressBar *RangeBar

	// UpperThreshold/LowerThreshold are present iff InProgressBar is
	// non-nil (§3.5 item 4).
	HasThresholds  bool
	UpperThreshold FixedPoint
	LowerThreshold FixedPoint

	LastTimestampUs int64
	HasLastAggTradeID bool
	LastAggTradeID    int64

	PriceWindowHash  uint64
	PriceWindowEntries []int64

	Anomalies AnomalySummary
}

// TakeCheckpoint snapshots the engine's current state. Threshold values are
// carried through unchanged — from_checkpoint/NewEngineFromCheckpoint never
// recomputes them (§3.5, final paragraph).
func (e *Engine) TakeCheckpoint() Checkpoint {
	cp := Checkpoint{
		Version:            CheckpointVersion,
		Symbol:             e.symbol,
		ThresholdTenthBp:   e.thresholdTenthBp,
		LastTimestampUs:    e.lastTimestampUs,
		HasLastAggTradeID:  e.hasLast && e.lastAggTradeID != NoTradeID,
		LastAggTradeID:     e.lastAggTradeID,
		PriceWindowHash:    e.window.hash(),
		PriceWindowEntries: e.window.snapshot(),
		Anomalies:          e.anomalies,
	}
	if e.current != nil {
		bar := e.current.bar
		cp.InProgressBar = &bar
		cp.HasThresholds = true
		cp.UpperThreshold = e.current.upper
		cp.LowerThreshold = e.current.lower
	}
	return cp
}

// NewEngineFromCheckpoint rebuilds an Engine equivalent to the one that
// produced `cp`. expectedSymbol and expectedThresholdTenthBp are the
// caller's expectation for which engine this checkpoint belongs to;
// mismatches are rejected rather than silently accepted. On restore, the
// processor resumes exactly as if no segment boundary existed (§3.5).
func NewEngineFromCheckpoint(expectedSymbol string, expectedThresholdTenthBp uint32, cp Checkpoint, opts ...EngineOption) (*Engine, error) {
	if cp.Version != CheckpointVersion {
		return nil, &CheckpointError{Symbol: expectedSymbol, Cause: ErrCheckpointVersion}
	}
	if cp.Symbol != expectedSymbol {
		return nil, &CheckpointError{Symbol: expectedSymbol, Cause: ErrSymbolMismatch}
	}
	if cp.ThresholdTenthBp != expectedThresholdTenthBp {
		return nil, &CheckpointError{Symbol: expectedSymbol, Cause: ErrThresholdMismatch}
	}
	if cp.InProgressBar != nil && !cp.HasThresholds {
		return nil, &CheckpointError{Symbol: expectedSymbol, Cause: ErrMissingThresholds}
	}

	e, err := NewEngine(cp.Symbol, cp.ThresholdTenthBp, opts...)
	if err != nil {
		return nil, &CheckpointError{Symbol: expectedSymbol, Cause: err}
	}
	e.lastTimestampUs = cp.LastTimestampUs
	if cp.HasLastAggTradeID {
		e.lastAggTradeID = cp.LastAggTradeID
	} else {
		e.lastAggTradeID = NoTradeID
	}
	e.hasLast = cp.LastTimestampUs != 0 || cp.HasLastAggTradeID || cp.InProgressBar != nil
	e.window = priceWindowFromSnapshot(cp.PriceWindowEntries)
	e.anomalies = cp.Anomalies
	if cp.InProgressBar != nil {
		bar := *cp.InProgressBar
		e.current = &openBar{bar: bar, upper: cp.UpperThreshold, lower: cp.LowerThreshold}
	}
	return e, nil
}

// PositionVerificationKind tags the three possible outcomes of
// VerifyPosition (§4.3).
type PositionVerificationKind int

const (
	PositionExact PositionVerificationKind = iota
	PositionGap
	PositionTimestampOnly
)

// PositionVerification is the sum type returned by VerifyPosition. Only the
// fields relevant to Kind are meaningful.
type PositionVerification struct {
	Kind PositionVerificationKind

	// Populated when Kind == PositionGap.
	ExpectedID   int64
	ActualID     int64
	MissingCount int64

	// Populated when Kind == PositionTimestampOnly.
	GapMs int64
}

// VerifyPosition asks whether `next` is exactly the tick that would have
// followed the engine's last-observed position. Provider-ID-aware when
// trade IDs are available; falls back to a timestamp-only comparison when
// they are not (e.g. forex).
func (e *Engine) VerifyPosition(next Tick) PositionVerification {
	if e.lastAggTradeID != NoTradeID && next.AggTradeID != NoTradeID {
		expected := e.lastAggTradeID + 1
		if next.AggTradeID == expected {
			return PositionVerification{Kind: PositionExact}
		}
		missing := next.AggTradeID - expected
		if missing < 0 {
			missing = 0
		}
		return PositionVerification{
			Kind:         PositionGap,
			ExpectedID:   expected,
			ActualID:     next.AggTradeID,
			MissingCount: missing,
		}
	}
	gapUs := next.TimestampUs - e.lastTimestampUs
	if gapUs < 0 {
		gapUs = 0
	}
	if gapUs == 0 {
		return PositionVerification{Kind: PositionExact}
	}
	return PositionVerification{Kind: PositionTimestampOnly, GapMs: gapUs / 1000}
}
