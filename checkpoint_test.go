// Copyright (c) 2025 Neomantra Corp

package rangebar_test

import (
	"bytes"

	rangebar "github.com/rangebar-go/rangebar"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Checkpoint encode/decode", func() {
	It("round-trips a checkpoint with an in-progress bar exactly", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		_, err := e.ProcessBatch([]rangebar.Tick{
			mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
			mkTick(2, "50050", "2", 1_000_000_001_000_000, true),
		})
		Expect(err).To(BeNil())

		cp := e.TakeCheckpoint()
		var buf bytes.Buffer
		Expect(rangebar.EncodeCheckpoint(&buf, cp)).To(Succeed())

		decoded, err := rangebar.DecodeCheckpoint(&buf)
		Expect(err).To(BeNil())
		Expect(decoded.Symbol).To(Equal(cp.Symbol))
		Expect(decoded.ThresholdTenthBp).To(Equal(cp.ThresholdTenthBp))
		Expect(decoded.PriceWindowHash).To(Equal(cp.PriceWindowHash))
		Expect(decoded.InProgressBar).NotTo(BeNil())
		Expect(*decoded.InProgressBar).To(Equal(*cp.InProgressBar))
		Expect(decoded.UpperThreshold).To(Equal(cp.UpperThreshold))
		Expect(decoded.LowerThreshold).To(Equal(cp.LowerThreshold))
	})

	It("round-trips a checkpoint with no in-progress bar", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		cp := e.TakeCheckpoint()
		var buf bytes.Buffer
		Expect(rangebar.EncodeCheckpoint(&buf, cp)).To(Succeed())

		decoded, err := rangebar.DecodeCheckpoint(&buf)
		Expect(err).To(BeNil())
		Expect(decoded.InProgressBar).To(BeNil())
		Expect(decoded.HasThresholds).To(BeFalse())
	})
})

var _ = Describe("NewEngineFromCheckpoint", func() {
	It("rejects an unsupported checkpoint version", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		cp := e.TakeCheckpoint()
		cp.Version = 999
		_, err := rangebar.NewEngineFromCheckpoint("BTCUSDT", 250, cp)
		Expect(err).NotTo(BeNil())
	})

	It("rejects a checkpoint claiming an in-progress bar with no thresholds", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		cp := e.TakeCheckpoint()
		bar := rangebar.RangeBar{Open: rangebar.MustParse("1")}
		cp.InProgressBar = &bar
		cp.HasThresholds = false
		_, err := rangebar.NewEngineFromCheckpoint("BTCUSDT", 250, cp)
		Expect(err).NotTo(BeNil())
	})
})

var _ = Describe("Engine.VerifyPosition", func() {
	It("reports exact continuation when the next trade ID follows immediately", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		_, err := e.ProcessBatch([]rangebar.Tick{mkTick(5, "50000", "1", 1_000_000_000_000_000, false)})
		Expect(err).To(BeNil())
		v := e.VerifyPosition(mkTick(6, "50001", "1", 1_000_000_001_000_000, false))
		Expect(v.Kind).To(Equal(rangebar.PositionExact))
	})

	It("reports a gap when trade IDs skip ahead", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		_, err := e.ProcessBatch([]rangebar.Tick{mkTick(5, "50000", "1", 1_000_000_000_000_000, false)})
		Expect(err).To(BeNil())
		v := e.VerifyPosition(mkTick(10, "50001", "1", 1_000_000_001_000_000, false))
		Expect(v.Kind).To(Equal(rangebar.PositionGap))
		Expect(v.ExpectedID).To(Equal(int64(6)))
		Expect(v.ActualID).To(Equal(int64(10)))
		Expect(v.MissingCount).To(Equal(int64(4)))
	})

	It("falls back to timestamp-only comparison for forex ticks", func() {
		e, _ := rangebar.NewEngine("EURUSD", 250)
		price := rangebar.MustParse("1.1000")
		volume := rangebar.MustParse("1000")
		first, err := rangebar.NewTick(rangebar.NoTradeID, price, volume, rangebar.NoTradeID, rangebar.NoTradeID, 1_700_000_000_000_000, false, rangebar.DataSource_Forex)
		Expect(err).To(BeNil())
		_, err = e.ProcessBatch([]rangebar.Tick{first})
		Expect(err).To(BeNil())

		next, err := rangebar.NewTick(rangebar.NoTradeID, price, volume, rangebar.NoTradeID, rangebar.NoTradeID, 1_700_000_005_000_000, false, rangebar.DataSource_Forex)
		Expect(err).To(BeNil())
		v := e.VerifyPosition(next)
		Expect(v.Kind).To(Equal(rangebar.PositionTimestampOnly))
		Expect(v.GapMs).To(Equal(int64(5000)))
	})
})
