// Copyright (c) 2025 Neomantra Corp

// Package providers adapts heterogeneous market-data archive/stream schemas
// into the canonical rangebar.Tick shape (§6.1). Concrete adapter types feed
// a generic consumer rather than a runtime-polymorphic record hierarchy —
// the same "small interface, concrete implementations" shape the core
// engine uses for its state machine.
package providers

import (
	"context"
	"fmt"

	rangebar "github.com/rangebar-go/rangebar"
)

// TickSource is a pull-driven stream of canonical ticks for a single symbol.
// Next returns io.EOF when the source is exhausted. Implementations
// are not required to be safe for concurrent use.
type TickSource interface {
	// Symbol is the canonical symbol this source produces ticks for.
	Symbol() string
	// DataSource identifies which family of schema this source normalizes.
	DataSource() rangebar.DataSource
	// Next returns the next tick, or an error (io.EOF at end of stream).
	Next(ctx context.Context) (rangebar.Tick, error)
	// Close releases any underlying resources (file handles, connections).
	Close() error
}

// ErrUnknownDataSource is returned by NewAdapter for an unregistered source.
var ErrUnknownDataSource = fmt.Errorf("providers: unknown data source")

// adapterFactory builds a TickSource from a symbol and a raw-record reader
// function; registered per DataSource in init() by the concrete adapter files.
type adapterFactory func(symbol string, next func() (RawRecord, error)) TickSource

var registry = map[rangebar.DataSource]adapterFactory{}

func register(source rangebar.DataSource, factory adapterFactory) {
	registry[source] = factory
}

// RawRecord is the schema-agnostic intermediate the jsonfile/httpfetch
// readers produce; each DataSource adapter interprets its fields according
// to its own wire convention (e.g. forex has no trade-ID fields).
type RawRecord struct {
	AggTradeID   int64
	Price        string
	Volume       string
	FirstTradeID int64
	LastTradeID  int64
	Timestamp    int64
	IsBuyerMaker bool

	// Bid/Ask are populated instead of Price for forex quote records; the
	// forex adapter synthesizes a mid-price trade-shaped tick from them.
	Bid string
	Ask string
}

// NewAdapter builds a TickSource for `source`, consuming RawRecords from
// `next` (typically (*JsonFileReader).Next, over a file or a FetchArchive body).
func NewAdapter(source rangebar.DataSource, symbol string, next func() (RawRecord, error)) (TickSource, error) {
	factory, ok := registry[source]
	if !ok {
		return nil, ErrUnknownDataSource
	}
	return factory(symbol, next), nil
}
