// Copyright (c) 2025 Neomantra Corp

package providers

import rangebar "github.com/rangebar-go/rangebar"

// Linear and inverse futures aggTrade records share cryptoAdapter's wire
// shape exactly (crypto_spot.go); only the DataSource tag differs, since the
// engine never branches on margining — it's metadata for export/CLI, not a
// breach-logic input.
func init() {
	register(rangebar.DataSource_CryptoLinearFutures, func(symbol string, next func() (RawRecord, error)) TickSource {
		return &cryptoAdapter{symbol: symbol, source: rangebar.DataSource_CryptoLinearFutures, next: next}
	})
	register(rangebar.DataSource_CryptoInverseFutures, func(symbol string, next func() (RawRecord, error)) TickSource {
		return &cryptoAdapter{symbol: symbol, source: rangebar.DataSource_CryptoInverseFutures, next: next}
	})
}
