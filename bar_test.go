// Copyright (c) 2025 Neomantra Corp

package rangebar_test

import (
	rangebar "github.com/rangebar-go/rangebar"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Turnover128", func() {
	It("returns zero when dividing by zero volume", func() {
		Expect(rangebar.ZeroTurnover.DivScaled(0)).To(Equal(rangebar.Zero))
	})

	It("computes VWAP as turnover divided by volume", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		ticks := []rangebar.Tick{
			mkTick(1, "100", "1", 1_000_000_000_000_000, false),
			mkTick(2, "100", "1", 1_000_000_001_000_000, false),
			mkTick(3, "103", "1", 1_000_000_002_000_000, false),
		}
		bars, err := e.ProcessBatch(ticks)
		Expect(err).To(BeNil())
		Expect(bars).To(HaveLen(1))
		// average of 100, 100, 103 weighted by volume 1 each == 101
		Expect(bars[0].VWAP.String()).To(Equal("101.00000000"))
	})
})

var _ = Describe("RangeBar.CheckInvariants", func() {
	It("accepts a bar produced by the engine", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		ticks := []rangebar.Tick{
			mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
			mkTick(2, "50125", "1", 1_000_000_001_000_000, false),
		}
		bars, err := e.ProcessBatch(ticks)
		Expect(err).To(BeNil())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].CheckInvariants(250)).To(BeNil())
	})

	It("rejects a bar whose close is neither high nor low", func() {
		b := rangebar.RangeBar{
			Open: rangebar.MustParse("100"), High: rangebar.MustParse("110"),
			Low: rangebar.MustParse("95"), Close: rangebar.MustParse("105"),
			Volume: rangebar.MustParse("1"),
		}
		Expect(b.CheckInvariants(250)).NotTo(BeNil())
	})

	It("rejects a bar whose volume doesn't equal buy+sell", func() {
		e, _ := rangebar.NewEngine("BTCUSDT", 250)
		ticks := []rangebar.Tick{
			mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
			mkTick(2, "50125", "1", 1_000_000_001_000_000, false),
		}
		bars, err := e.ProcessBatch(ticks)
		Expect(err).To(BeNil())
		b := bars[0]
		b.Volume = rangebar.MustParse("999")
		Expect(b.CheckInvariants(250)).NotTo(BeNil())
	})
})
