// Copyright (c) 2025 Neomantra Corp

package export

import (
	"io"

	json "github.com/segmentio/encoding/json"

	rangebar "github.com/rangebar-go/rangebar"
	"github.com/rangebar-go/rangebar/streaming"
)

// barRecord is the NDJSON shape written per bar: the RangeBar's fields plus
// the symbol it belongs to (RangeBar itself carries no symbol — see bar.go).
type barRecord struct {
	Symbol               string            `json:"symbol"`
	Open                 rangebar.FixedPoint `json:"open"`
	High                 rangebar.FixedPoint `json:"high"`
	Low                  rangebar.FixedPoint `json:"low"`
	Close                rangebar.FixedPoint `json:"close"`
	Volume               rangebar.FixedPoint `json:"volume"`
	Turnover             string              `json:"turnover"`
	BuyVolume            rangebar.FixedPoint `json:"buy_volume"`
	SellVolume           rangebar.FixedPoint `json:"sell_volume"`
	VWAP                 rangebar.FixedPoint `json:"vwap"`
	AggTradeCount        int64               `json:"agg_trade_count"`
	IndividualTradeCount int64               `json:"individual_trade_count"`
	FirstAggTradeID      int64               `json:"first_agg_trade_id"`
	LastAggTradeID       int64               `json:"last_agg_trade_id"`
	BuyTradeCount        int64               `json:"buy_trade_count"`
	SellTradeCount       int64               `json:"sell_trade_count"`
	OpenTimeUs           int64               `json:"open_time_us"`
	CloseTimeUs          int64               `json:"close_time_us"`
	DataSource           string              `json:"data_source"`
}

// JsonWriter is a streaming.BarSink that marshals each closed bar as one
// NDJSON line, adapted from internal/file/json_writer.go's WriteAsJson
// helper (marshal, write, then a trailing newline) generalized from a
// Visitor-per-DBN-record-type fan-out to BarSink's single OnBar method.
type JsonWriter struct {
	streaming.NullSink
	symbol string
	w      io.Writer
}

// NewJsonWriter wraps `w` to emit NDJSON bars tagged with `symbol`.
func NewJsonWriter(w io.Writer, symbol string) *JsonWriter {
	return &JsonWriter{symbol: symbol, w: w}
}

func (j *JsonWriter) OnBar(bar rangebar.RangeBar) error {
	rec := barRecord{
		Symbol:               j.symbol,
		Open:                 bar.Open,
		High:                 bar.High,
		Low:                  bar.Low,
		Close:                bar.Close,
		Volume:               bar.Volume,
		Turnover:             bar.Turnover.String(),
		BuyVolume:            bar.BuyVolume,
		SellVolume:           bar.SellVolume,
		VWAP:                 bar.VWAP,
		AggTradeCount:        bar.AggTradeCount,
		IndividualTradeCount: bar.IndividualTradeCount,
		FirstAggTradeID:      bar.FirstAggTradeID,
		LastAggTradeID:       bar.LastAggTradeID,
		BuyTradeCount:        bar.BuyTradeCount,
		SellTradeCount:       bar.SellTradeCount,
		OpenTimeUs:           bar.OpenTimeUs,
		CloseTimeUs:          bar.CloseTimeUs,
		DataSource:           bar.DataSource.String(),
	}
	return writeAsJson(&rec, j.w)
}

// writeAsJson marshals val and writes it followed by a newline, mirroring
// the teacher's WriteAsJson generic helper.
func writeAsJson[T any](val *T, w io.Writer) error {
	jstr, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if _, err := w.Write(jstr); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}
