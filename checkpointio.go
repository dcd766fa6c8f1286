// Copyright (c) 2025 Neomantra Corp

package rangebar

import (
	"fmt"
	"io"
	"strings"

	json "github.com/segmentio/encoding/json"
)

// checkpointWire is the JSON-serializable shape of a Checkpoint. Kept
// distinct from Checkpoint itself so that FixedPoint/Turnover128 values
// round-trip through their exact integer representations (§6.2 item 1:
// lossless round-trip, including 128-bit turnover) rather than through
// float-lossy JSON numbers.
type checkpointWire struct {
	Version          uint32 `json:"version"`
	Symbol           string `json:"symbol"`
	ThresholdTenthBp uint32 `json:"threshold_tenth_bp"`

	HasInProgressBar bool          `json:"has_in_progress_bar"`
	InProgressBar    *barWire      `json:"in_progress_bar,omitempty"`
	HasThresholds    bool          `json:"has_thresholds"`
	UpperThreshold   int64         `json:"upper_threshold_scaled,omitempty"`
	LowerThreshold   int64         `json:"lower_threshold_scaled,omitempty"`

	LastTimestampUs   int64 `json:"last_timestamp_us"`
	HasLastAggTradeID bool  `json:"has_last_agg_trade_id"`
	LastAggTradeID    int64 `json:"last_agg_trade_id,omitempty"`

	PriceWindowHash    uint64  `json:"price_window_hash"`
	PriceWindowEntries []int64 `json:"price_window_entries,omitempty"`

	GapsDetected       uint64 `json:"gaps_detected"`
	OverlapsDetected   uint64 `json:"overlaps_detected"`
	TimestampAnomalies uint64 `json:"timestamp_anomalies"`
}

// barWire is RangeBar's JSON-serializable shape. Turnover is split into its
// hi/lo limbs so the 128-bit value round-trips exactly.
type barWire struct {
	Open  int64 `json:"open_scaled"`
	High  int64 `json:"high_scaled"`
	Low   int64 `json:"low_scaled"`
	Close int64 `json:"close_scaled"`

	Volume      int64 `json:"volume_scaled"`
	TurnoverHi  int64 `json:"turnover_hi"`
	TurnoverLo  uint64 `json:"turnover_lo"`

	AggTradeCount        int64 `json:"agg_trade_count"`
	IndividualTradeCount int64 `json:"individual_trade_count"`

	OpenTimeUs  int64 `json:"open_time_us"`
	CloseTimeUs int64 `json:"close_time_us"`

	FirstAggTradeID int64 `json:"first_agg_trade_id"`
	LastAggTradeID  int64 `json:"last_agg_trade_id"`

	BuyVolume      int64  `json:"buy_volume_scaled"`
	SellVolume     int64  `json:"sell_volume_scaled"`
	BuyTurnoverHi  int64  `json:"buy_turnover_hi"`
	BuyTurnoverLo  uint64 `json:"buy_turnover_lo"`
	SellTurnoverHi int64  `json:"sell_turnover_hi"`
	SellTurnoverLo uint64 `json:"sell_turnover_lo"`

	BuyTradeCount  int64 `json:"buy_trade_count"`
	SellTradeCount int64 `json:"sell_trade_count"`

	VWAP int64 `json:"vwap_scaled"`

	DataSource uint8 `json:"data_source"`
}

func barToWire(b RangeBar) barWire {
	return barWire{
		Open: b.Open.Scaled(), High: b.High.Scaled(), Low: b.Low.Scaled(), Close: b.Close.Scaled(),
		Volume:               b.Volume.Scaled(),
		TurnoverHi:           b.Turnover.Hi,
		TurnoverLo:           b.Turnover.Lo,
		AggTradeCount:        b.AggTradeCount,
		IndividualTradeCount: b.IndividualTradeCount,
		OpenTimeUs:           b.OpenTimeUs,
		CloseTimeUs:          b.CloseTimeUs,
		FirstAggTradeID:      b.FirstAggTradeID,
		LastAggTradeID:       b.LastAggTradeID,
		BuyVolume:            b.BuyVolume.Scaled(),
		SellVolume:           b.SellVolume.Scaled(),
		BuyTurnoverHi:        b.BuyTurnover.Hi,
		BuyTurnoverLo:        b.BuyTurnover.Lo,
		SellTurnoverHi:       b.SellTurnover.Hi,
		SellTurnoverLo:       b.SellTurnover.Lo,
		BuyTradeCount:        b.BuyTradeCount,
		SellTradeCount:       b.SellTradeCount,
		VWAP:                 b.VWAP.Scaled(),
		DataSource:           uint8(b.DataSource),
	}
}

func barFromWire(w barWire) RangeBar {
	return RangeBar{
		Open: FromScaled(w.Open), High: FromScaled(w.High), Low: FromScaled(w.Low), Close: FromScaled(w.Close),
		Volume:               FromScaled(w.Volume),
		Turnover:             Turnover128{Hi: w.TurnoverHi, Lo: w.TurnoverLo},
		AggTradeCount:        w.AggTradeCount,
		IndividualTradeCount: w.IndividualTradeCount,
		OpenTimeUs:           w.OpenTimeUs,
		CloseTimeUs:          w.CloseTimeUs,
		FirstAggTradeID:      w.FirstAggTradeID,
		LastAggTradeID:       w.LastAggTradeID,
		BuyVolume:            FromScaled(w.BuyVolume),
		SellVolume:           FromScaled(w.SellVolume),
		BuyTurnover:          Turnover128{Hi: w.BuyTurnoverHi, Lo: w.BuyTurnoverLo},
		SellTurnover:         Turnover128{Hi: w.SellTurnoverHi, Lo: w.SellTurnoverLo},
		BuyTradeCount:        w.BuyTradeCount,
		SellTradeCount:       w.SellTradeCount,
		VWAP:                 FromScaled(w.VWAP),
		DataSource:           DataSource(w.DataSource),
	}
}

// EncodeCheckpoint serializes cp as self-describing JSON per §6.2: every
// numeric field round-trips exactly (no floats), and Version lets a future
// reader reject an incompatible format.
func EncodeCheckpoint(w io.Writer, cp Checkpoint) error {
	wire := checkpointWire{
		Version:            cp.Version,
		Symbol:             cp.Symbol,
		ThresholdTenthBp:   cp.ThresholdTenthBp,
		HasInProgressBar:   cp.InProgressBar != nil,
		HasThresholds:      cp.HasThresholds,
		UpperThreshold:     cp.UpperThreshold.Scaled(),
		LowerThreshold:     cp.LowerThreshold.Scaled(),
		LastTimestampUs:    cp.LastTimestampUs,
		HasLastAggTradeID:  cp.HasLastAggTradeID,
		LastAggTradeID:     cp.LastAggTradeID,
		PriceWindowHash:    cp.PriceWindowHash,
		PriceWindowEntries: cp.PriceWindowEntries,
		GapsDetected:       cp.Anomalies.GapsDetected,
		OverlapsDetected:   cp.Anomalies.OverlapsDetected,
		TimestampAnomalies: cp.Anomalies.TimestampAnomalies,
	}
	if cp.InProgressBar != nil {
		b := barToWire(*cp.InProgressBar)
		wire.InProgressBar = &b
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(wire); err != nil {
		return fmt.Errorf("rangebar: encode checkpoint: %w", err)
	}
	return nil
}

// DecodeCheckpoint deserializes a Checkpoint previously written by
// EncodeCheckpoint. Does not itself validate symbol/threshold against an
// expected engine — that happens in NewEngineFromCheckpoint.
func DecodeCheckpoint(r io.Reader) (Checkpoint, error) {
	var wire checkpointWire
	dec := json.NewDecoder(r)
	if err := dec.Decode(&wire); err != nil {
		return Checkpoint{}, fmt.Errorf("rangebar: decode checkpoint: %w", err)
	}
	cp := Checkpoint{
		Version:            wire.Version,
		Symbol:             wire.Symbol,
		ThresholdTenthBp:   wire.ThresholdTenthBp,
		HasThresholds:      wire.HasThresholds,
		UpperThreshold:     FromScaled(wire.UpperThreshold),
		LowerThreshold:     FromScaled(wire.LowerThreshold),
		LastTimestampUs:    wire.LastTimestampUs,
		HasLastAggTradeID:  wire.HasLastAggTradeID,
		LastAggTradeID:     wire.LastAggTradeID,
		PriceWindowHash:    wire.PriceWindowHash,
		PriceWindowEntries: wire.PriceWindowEntries,
		Anomalies: AnomalySummary{
			GapsDetected:       wire.GapsDetected,
			OverlapsDetected:   wire.OverlapsDetected,
			TimestampAnomalies: wire.TimestampAnomalies,
		},
	}
	if wire.HasInProgressBar && wire.InProgressBar != nil {
		bar := barFromWire(*wire.InProgressBar)
		cp.InProgressBar = &bar
	}
	return cp, nil
}

// WriteCheckpointFile writes cp to `path`, optionally zstd-compressing when
// the filename ends in .zst/.zstd, via the shared compressed-writer
// factory (compressed_io.go). Uses a temp-file-plus-rename so a reader
// never observes a partially-written checkpoint (§4.4 "sink-side
// persistence MAY additionally use temp-file-plus-rename").
func WriteCheckpointFile(path string, cp Checkpoint) error {
	tmpPath := path + ".tmp"
	// The temp name's suffix hides the final extension from
	// MakeCompressedWriter, so decide on compression from `path` itself.
	useZstd := strings.HasSuffix(path, ".zst") || strings.HasSuffix(path, ".zstd")
	w, closeFn, err := MakeCompressedWriter(tmpPath, useZstd)
	if err != nil {
		return fmt.Errorf("rangebar: open checkpoint temp file: %w", err)
	}
	if err := EncodeCheckpoint(w, cp); err != nil {
		closeFn()
		return err
	}
	closeFn()
	return renameFile(tmpPath, path)
}

// ReadCheckpointFile reads and decodes a checkpoint previously written by
// WriteCheckpointFile.
func ReadCheckpointFile(path string) (Checkpoint, error) {
	r, closer, err := MakeCompressedReader(path, false)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("rangebar: open checkpoint file: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	return DecodeCheckpoint(r)
}
