// Copyright (c) 2025 Neomantra Corp

package export

import (
	"encoding/csv"
	"io"
	"strconv"

	rangebar "github.com/rangebar-go/rangebar"
	"github.com/rangebar-go/rangebar/streaming"
)

var csvHeader = []string{
	"symbol", "open", "high", "low", "close", "volume", "turnover",
	"buy_volume", "sell_volume", "vwap",
	"agg_trade_count", "individual_trade_count",
	"first_agg_trade_id", "last_agg_trade_id",
	"buy_trade_count", "sell_trade_count",
	"open_time_us", "close_time_us", "data_source",
}

// CsvWriter is a streaming.BarSink that appends each closed bar as one CSV
// row, following the same encoding/csv usage as internal/mcp_data/cache.go's
// queryDuckDB (csv.NewWriter over a buffered output, one Write call per row,
// explicit Flush/Error check on close) but writing RangeBar fields directly
// instead of a generic SQL row. Prices/volumes render via FixedPoint.String()
// (§6.3's canonical 8-decimal form), never through a float conversion.
type CsvWriter struct {
	streaming.NullSink
	symbol      string
	w           *csv.Writer
	wroteHeader bool
}

// NewCsvWriter wraps `w` to emit CSV rows tagged with `symbol`, writing the
// header on the first call to OnBar.
func NewCsvWriter(w io.Writer, symbol string) *CsvWriter {
	return &CsvWriter{symbol: symbol, w: csv.NewWriter(w)}
}

func (c *CsvWriter) OnBar(bar rangebar.RangeBar) error {
	if !c.wroteHeader {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
		c.wroteHeader = true
	}
	row := []string{
		c.symbol,
		bar.Open.String(),
		bar.High.String(),
		bar.Low.String(),
		bar.Close.String(),
		bar.Volume.String(),
		bar.Turnover.String(),
		bar.BuyVolume.String(),
		bar.SellVolume.String(),
		bar.VWAP.String(),
		strconv.FormatInt(bar.AggTradeCount, 10),
		strconv.FormatInt(bar.IndividualTradeCount, 10),
		strconv.FormatInt(bar.FirstAggTradeID, 10),
		strconv.FormatInt(bar.LastAggTradeID, 10),
		strconv.FormatInt(bar.BuyTradeCount, 10),
		strconv.FormatInt(bar.SellTradeCount, 10),
		strconv.FormatInt(bar.OpenTimeUs, 10),
		strconv.FormatInt(bar.CloseTimeUs, 10),
		bar.DataSource.String(),
	}
	return c.w.Write(row)
}

func (c *CsvWriter) OnStreamEnd() error {
	c.w.Flush()
	return c.w.Error()
}
