// Copyright (c) 2025 Neomantra Corp

package rangebar

import "sort"

// tier1Key indexes the curated registry by data source and symbol, adapting
// symbol_map.go's (date, instrument ID) composite-key map to a (source,
// symbol) composite key — a convenience/configuration concern, never
// consulted by the engine's breach logic.
type tier1Key struct {
	Source DataSource
	Symbol string
}

// Tier1Entry describes one curated high-liquidity symbol: its default range
// threshold and a short human label for CLI/TUI display.
type Tier1Entry struct {
	Source           DataSource
	Symbol           string
	DefaultThresholdTenthBp uint32
	Label            string
}

var tier1Registry = map[tier1Key]Tier1Entry{}

func registerTier1(source DataSource, symbol string, defaultThresholdTenthBp uint32, label string) {
	tier1Registry[tier1Key{Source: source, Symbol: symbol}] = Tier1Entry{
		Source:                  source,
		Symbol:                  symbol,
		DefaultThresholdTenthBp: defaultThresholdTenthBp,
		Label:                   label,
	}
}

func init() {
	registerTier1(DataSource_CryptoSpot, "BTCUSDT", 250, "Bitcoin / Tether (spot)")
	registerTier1(DataSource_CryptoSpot, "ETHUSDT", 250, "Ethereum / Tether (spot)")
	registerTier1(DataSource_CryptoSpot, "SOLUSDT", 400, "Solana / Tether (spot)")
	registerTier1(DataSource_CryptoSpot, "BNBUSDT", 300, "BNB / Tether (spot)")

	registerTier1(DataSource_CryptoLinearFutures, "BTCUSDT", 250, "Bitcoin / Tether (linear perp)")
	registerTier1(DataSource_CryptoLinearFutures, "ETHUSDT", 250, "Ethereum / Tether (linear perp)")
	registerTier1(DataSource_CryptoInverseFutures, "BTCUSD_PERP", 250, "Bitcoin / USD (inverse perp)")

	registerTier1(DataSource_Forex, "EURUSD", 50, "Euro / US Dollar")
	registerTier1(DataSource_Forex, "GBPUSD", 60, "British Pound / US Dollar")
	registerTier1(DataSource_Forex, "USDJPY", 60, "US Dollar / Japanese Yen")
}

// IsTier1 reports whether (source, symbol) is a curated Tier-1 entry.
func IsTier1(source DataSource, symbol string) bool {
	_, ok := tier1Registry[tier1Key{Source: source, Symbol: symbol}]
	return ok
}

// LookupTier1 returns the registry entry for (source, symbol), and whether
// it was found.
func LookupTier1(source DataSource, symbol string) (Tier1Entry, bool) {
	entry, ok := tier1Registry[tier1Key{Source: source, Symbol: symbol}]
	return entry, ok
}

// Tier1Symbols returns all curated symbols for a given source, sorted by
// symbol name so CLI/TUI listings are deterministic (not sorted by liquidity).
func Tier1Symbols(source DataSource) []string {
	var out []string
	for key := range tier1Registry {
		if key.Source == source {
			out = append(out, key.Symbol)
		}
	}
	sort.Strings(out)
	return out
}
