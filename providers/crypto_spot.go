// Copyright (c) 2025 Neomantra Corp

package providers

import (
	"context"
	"fmt"

	rangebar "github.com/rangebar-go/rangebar"
)

// cryptoAdapter normalizes spot/linear/inverse futures aggTrade records,
// which share an identical wire shape and differ only in which
// rangebar.DataSource they're tagged with. Validates strictly-increasing
// ordering as records are pulled (§6.1: a provider adapter never hands the
// engine an out-of-order tick), the way dbn_scanner.go surfaces an error
// rather than silently absorbing a malformed record.
type cryptoAdapter struct {
	symbol string
	source rangebar.DataSource
	next   func() (RawRecord, error)

	hasLast  bool
	lastID   int64
}

func init() {
	register(rangebar.DataSource_CryptoSpot, func(symbol string, next func() (RawRecord, error)) TickSource {
		return &cryptoAdapter{symbol: symbol, source: rangebar.DataSource_CryptoSpot, next: next}
	})
}

func (a *cryptoAdapter) Symbol() string                   { return a.symbol }
func (a *cryptoAdapter) DataSource() rangebar.DataSource   { return a.source }
func (a *cryptoAdapter) Close() error                      { return nil }

func (a *cryptoAdapter) Next(ctx context.Context) (rangebar.Tick, error) {
	if err := ctx.Err(); err != nil {
		return rangebar.Tick{}, err
	}
	raw, err := a.next()
	if err != nil {
		return rangebar.Tick{}, err
	}
	if a.hasLast && raw.AggTradeID <= a.lastID {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: non-increasing agg_trade_id %d <= %d", a.symbol, raw.AggTradeID, a.lastID)
	}
	price, err := rangebar.Parse(raw.Price)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: parse price: %w", a.symbol, err)
	}
	volume, err := rangebar.Parse(raw.Volume)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: parse volume: %w", a.symbol, err)
	}
	tick, err := rangebar.NewTick(raw.AggTradeID, price, volume, raw.FirstTradeID, raw.LastTradeID, raw.Timestamp, raw.IsBuyerMaker, a.source)
	if err != nil {
		return rangebar.Tick{}, fmt.Errorf("providers: %s: %w", a.symbol, err)
	}
	a.hasLast = true
	a.lastID = raw.AggTradeID
	return tick, nil
}
