// Copyright (c) 2025 Neomantra Corp

package providers

import (
	"context"
	"fmt"

	rangebar "github.com/rangebar-go/rangebar"
)

// forexAdapter synthesizes trade-shaped ticks from bid/ask quote records
// (§3.2: "forex sources may set agg_trade_id/first_trade_id/last_trade_id to
// None and is_buyer_maker to false"). Price is the bid/ask mid; volume is
// the record's volume field when present, else a nominal 1.
type forexAdapter struct {
	symbol string
	next   func() (RawRecord, error)

	hasLast    bool
	lastTsUs   int64
	sequence   int64
}

func init() {
	register(rangebar.DataSource_Forex, func(symbol string, next func() (RawRecord, error)) TickSource {
		return &forexAdapter{symbol: symbol, next: next, sequence: 0}
	})
}

func (a *forexAdapter) Symbol() string                 { return a.symbol }
func (a *forexAdapter) DataSource() rangebar.DataSource { return rangebar.DataSource_Forex }
func (a *forexAdapter) Close() error                    { return nil }

func (a *forexAdapter) Next(ctx context.Context) (rangebar.Tick, error) {
	if err := ctx.Err(); err != nil {
		return rangebar.Tick{}, err
	}
	raw, err := a.next()
	if err != nil {
		return rangebar.Tick{}, err
	}
	bid, err := rangebar.Parse(raw.Bid)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: parse bid: %w", a.symbol, err)
	}
	ask, err := rangebar.Parse(raw.Ask)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: parse ask: %w", a.symbol, err)
	}
	sum, err := bid.Add(ask)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: bid+ask overflow: %w", a.symbol, err)
	}
	// Halve via scaled-integer division; acceptable here since it runs once
	// per quote record, never on the engine's hot path.
	mid := rangebar.FromScaled(sum.Scaled() / 2)

	volume := raw.Volume
	if volume == "" {
		volume = "1"
	}
	vol, err := rangebar.Parse(volume)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: parse volume: %w", a.symbol, err)
	}

	a.sequence++
	tick, err := rangebar.NewTick(rangebar.NoTradeID, mid, vol, rangebar.NoTradeID, rangebar.NoTradeID, raw.Timestamp, false, rangebar.DataSource_Forex)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: %w", a.symbol, err)
	}
	if a.hasLast && tick.TimestampUs < a.lastTsUs {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: non-increasing timestamp %d < %d", a.symbol, tick.TimestampUs, a.lastTsUs)
	}
	a.hasLast = true
	a.lastTsUs = tick.TimestampUs
	return tick, nil
}
