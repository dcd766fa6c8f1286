// Copyright (c) 2025 Neomantra Corp

package rangebar

import (
	"log/slog"
)

// AnomalySummary accumulates non-fatal observations during processing:
// gaps in individual-trade IDs, overlapping trade-ID ranges between
// consecutive ticks, and timestamp jitter. None of these halt processing
// (§7: "anomalies that are not errors").
type AnomalySummary struct {
	GapsDetected        uint64
	OverlapsDetected    uint64
	TimestampAnomalies  uint64
}

// openBar holds the currently accumulating bar plus its two fixed breach
// thresholds, anchored once at open and never recomputed (§3.4).
type openBar struct {
	bar          RangeBar
	upper, lower FixedPoint
}

// Engine is the single-symbol, in-order tick-to-bar state machine (C3). It
// is owned by exactly one goroutine at a time (§5): no internal locking is
// performed. The zero value is not usable; construct with NewEngine or
// NewEngineFromCheckpoint.
type Engine struct {
	symbol           string
	thresholdTenthBp uint32
	logger           *slog.Logger

	current *openBar

	hasLast         bool
	lastTimestampUs int64
	lastAggTradeID  int64

	window    priceWindow
	anomalies AnomalySummary
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithLogger sets the logger used for anomaly/lifecycle logging. Defaults
// to slog.Default() when not supplied, mirroring LiveConfig's logger
// fallback in the teacher's live package.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine constructs an Engine for `symbol` parameterized by
// `thresholdTenthBp` (tenths of a basis point, §6.4). Returns
// ErrInvalidThreshold if the threshold is outside [1, 100000].
func NewEngine(symbol string, thresholdTenthBp uint32, opts ...EngineOption) (*Engine, error) {
	if thresholdTenthBp < MinThresholdTenthBp || thresholdTenthBp > MaxThresholdTenthBp {
		return nil, ErrInvalidThreshold
	}
	e := &Engine{
		symbol:           symbol,
		thresholdTenthBp: thresholdTenthBp,
		lastAggTradeID:   NoTradeID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Symbol returns the engine's symbol.
func (e *Engine) Symbol() string { return e.symbol }

// ThresholdTenthBp returns the engine's configured threshold.
func (e *Engine) ThresholdTenthBp() uint32 { return e.thresholdTenthBp }

// Anomalies returns a copy of the accumulated anomaly summary.
func (e *Engine) Anomalies() AnomalySummary { return e.anomalies }

// ProcessBatch consumes a pre-sorted batch of ticks, in order, appending a
// completed bar to the result for each breach. The tail in-progress bar, if
// any, stays internal (visible via PeekIncomplete). A nil or empty slice
// yields no bars and a nil error (§8.2); ErrEmptyBatch is not returned.
func (e *Engine) ProcessBatch(ticks []Tick) ([]RangeBar, error) {
	if len(ticks) == 0 {
		return nil, nil
	}
	var closed []RangeBar
	for i, tick := range ticks {
		bar, err := e.processOneInternal(tick, i)
		if err != nil {
			return closed, err
		}
		if bar != nil {
			closed = append(closed, *bar)
		}
	}
	return closed, nil
}

// ProcessOne is the streaming entry point: processes a single tick and
// returns the completed bar if this tick closed one.
func (e *Engine) ProcessOne(tick Tick) (*RangeBar, error) {
	return e.processOneInternal(tick, 0)
}

func (e *Engine) processOneInternal(tick Tick, batchIndex int) (*RangeBar, error) {
	if e.hasLast {
		prev := Tick{TimestampUs: e.lastTimestampUs, AggTradeID: e.lastAggTradeID}
		if tick.lessThan(prev) {
			return nil, &UnsortedTradesError{Index: batchIndex, Prev: prev, Curr: tick}
		}
		e.trackAnomalies(prev, tick)
	}
	e.hasLast = true
	e.lastTimestampUs = tick.TimestampUs
	e.lastAggTradeID = tick.AggTradeID
	e.window.push(tick.Price.Scaled())

	if e.current == nil {
		if err := e.openNewBar(tick); err != nil {
			return nil, err
		}
		return e.testBreach(tick)
	}
	if err := e.extendBar(tick); err != nil {
		return nil, err
	}
	return e.testBreach(tick)
}

// trackAnomalies records non-fatal observations between the previous tick
// and the current one. Individual-trade-ID gaps/overlaps are only
// meaningful for sources that carry trade IDs (forex does not).
func (e *Engine) trackAnomalies(prev, curr Tick) {
	if prev.TimestampUs == curr.TimestampUs && prev.AggTradeID == curr.AggTradeID {
		e.anomalies.TimestampAnomalies++
	}
	if curr.DataSource.IsForex() || prev.LastTradeID == NoTradeID || curr.FirstTradeID == NoTradeID {
		return
	}
	switch {
	case curr.FirstTradeID > prev.LastTradeID+1:
		e.anomalies.GapsDetected++
	case curr.FirstTradeID <= prev.LastTradeID:
		e.anomalies.OverlapsDetected++
	}
}

// openNewBar opens a new bar from `tick`, anchoring its fixed thresholds
// from the opening price. Thresholds are never recomputed afterward (§3.4,
// §9 "no lookahead bias"). Returns an OverflowError if the opening
// turnover product cannot be represented, matching extendBar's error
// return for the same condition on subsequent ticks.
func (e *Engine) openNewBar(tick Tick) error {
	upper, lower, err := tick.Price.Thresholds(e.thresholdTenthBp)
	if err != nil {
		// Threshold validity was already checked at NewEngine construction;
		// this can only fail if thresholdTenthBp were mutated out-of-band,
		// which the API surface does not allow.
		panic(err)
	}
	side := sideOf(tick)
	bar := RangeBar{
		Open:            tick.Price,
		High:            tick.Price,
		Low:             tick.Price,
		Close:           tick.Price,
		Volume:          tick.Volume,
		AggTradeCount:   1,
		IndividualTradeCount: tick.IndividualTradeCount(),
		OpenTimeUs:      tick.TimestampUs,
		CloseTimeUs:     tick.TimestampUs,
		FirstAggTradeID: tick.AggTradeID,
		LastAggTradeID:  tick.AggTradeID,
		DataSource:      tick.DataSource,
	}
	if side == sideBuy {
		bar.BuyVolume = tick.Volume
		bar.BuyTradeCount = 1
	} else {
		bar.SellVolume = tick.Volume
		bar.SellTradeCount = 1
	}
	turnover, ok := ZeroTurnover.addProduct(tick.Price.Scaled(), tick.Volume.Scaled())
	if !ok {
		return &OverflowError{Kind: OverflowKind_Turnover, Symbol: e.symbol}
	}
	bar.Turnover = turnover
	if side == sideBuy {
		bar.BuyTurnover = turnover
	} else {
		bar.SellTurnover = turnover
	}
	e.current = &openBar{bar: bar, upper: upper, lower: lower}
	return nil
}

type side int

const (
	sideBuy side = iota
	sideSell
)

// sideOf determines the aggressor side per §4.3: maker==true means the
// taker is the seller, so the tick counts as sell volume.
func sideOf(tick Tick) side {
	if tick.IsBuyerMaker {
		return sideSell
	}
	return sideBuy
}

// extendBar folds `tick` into the currently open bar.
func (e *Engine) extendBar(tick Tick) error {
	b := &e.current.bar
	b.High = Max(b.High, tick.Price)
	b.Low = Min(b.Low, tick.Price)
	b.Close = tick.Price
	b.CloseTimeUs = tick.TimestampUs
	b.LastAggTradeID = tick.AggTradeID
	b.AggTradeCount++
	b.IndividualTradeCount += tick.IndividualTradeCount()

	newVolume, err := b.Volume.Add(tick.Volume)
	if err != nil {
		return &OverflowError{Kind: OverflowKind_Volume, Symbol: e.symbol}
	}
	b.Volume = newVolume

	turnover, ok := b.Turnover.addProduct(tick.Price.Scaled(), tick.Volume.Scaled())
	if !ok {
		return &OverflowError{Kind: OverflowKind_Turnover, Symbol: e.symbol}
	}
	b.Turnover = turnover

	side := sideOf(tick)
	if side == sideBuy {
		newBuyVolume, err := b.BuyVolume.Add(tick.Volume)
		if err != nil {
			return &OverflowError{Kind: OverflowKind_Volume, Symbol: e.symbol}
		}
		b.BuyVolume = newBuyVolume
		b.BuyTradeCount++
		buyTurnover, ok := b.BuyTurnover.addProduct(tick.Price.Scaled(), tick.Volume.Scaled())
		if !ok {
			return &OverflowError{Kind: OverflowKind_Turnover, Symbol: e.symbol}
		}
		b.BuyTurnover = buyTurnover
	} else {
		newSellVolume, err := b.SellVolume.Add(tick.Volume)
		if err != nil {
			return &OverflowError{Kind: OverflowKind_Volume, Symbol: e.symbol}
		}
		b.SellVolume = newSellVolume
		b.SellTradeCount++
		sellTurnover, ok := b.SellTurnover.addProduct(tick.Price.Scaled(), tick.Volume.Scaled())
		if !ok {
			return &OverflowError{Kind: OverflowKind_Turnover, Symbol: e.symbol}
		}
		b.SellTurnover = sellTurnover
	}
	return nil
}

// testBreach checks the close price of the current bar against its fixed
// thresholds (§4.3 step 3). Inclusive comparisons: an exact-threshold tick
// closes the bar. On breach, computes VWAP, emits the bar, and clears
// current so the next tick opens a fresh bar — the breach tick itself has
// already been absorbed into the closing bar and is not double-counted.
func (e *Engine) testBreach(tick Tick) (*RangeBar, error) {
	ob := e.current
	closePrice := ob.bar.Close
	if closePrice.LessThan(ob.upper) && closePrice.GreaterThan(ob.lower) {
		return nil, nil
	}
	ob.bar.VWAP = ob.bar.Turnover.DivScaled(ob.bar.Volume.Scaled())
	closed := ob.bar
	e.current = nil
	return &closed, nil
}

// PeekIncomplete returns a copy of the in-progress bar, or nil if none is
// open. Non-destructive: does not affect subsequent processing.
func (e *Engine) PeekIncomplete() *RangeBar {
	if e.current == nil {
		return nil
	}
	b := e.current.bar
	return &b
}
