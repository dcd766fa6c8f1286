// Copyright (c) 2025 Neomantra Corp

package rangebar_test

import (
	rangebar "github.com/rangebar-go/rangebar"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mkTick(id int64, price, volume string, tsUs int64, isBuyerMaker bool) rangebar.Tick {
	p := rangebar.MustParse(price)
	v := rangebar.MustParse(volume)
	tick, err := rangebar.NewTick(id, p, v, id, id, tsUs, isBuyerMaker, rangebar.DataSource_CryptoSpot)
	Expect(err).To(BeNil())
	return tick
}

var _ = Describe("Engine", func() {
	Context("scenario A: upward breach at 25bp", func() {
		It("closes one bar", func() {
			e, err := rangebar.NewEngine("BTCUSDT", 250)
			Expect(err).To(BeNil())
			ticks := []rangebar.Tick{
				mkTick(1, "50000.00000000", "1.00000000", 1_000_000_000_000_000, false),
				mkTick(2, "50100.00000000", "1.00000000", 1_000_000_002_000_000, false),
				mkTick(3, "50125.00000000", "1.00000000", 1_000_000_003_000_000, false),
			}
			bars, err := e.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(1))
			b := bars[0]
			Expect(b.Open.String()).To(Equal("50000.00000000"))
			Expect(b.High.String()).To(Equal("50125.00000000"))
			Expect(b.Low.String()).To(Equal("50000.00000000"))
			Expect(b.Close.String()).To(Equal("50125.00000000"))
			Expect(b.Volume.String()).To(Equal("3.00000000"))
			Expect(b.BuyVolume.String()).To(Equal("3.00000000"))
			Expect(b.VWAP.String()).To(Equal("50075.00000000"))
		})
	})

	Context("scenario B: downward breach at 25bp", func() {
		It("closes one sell-side bar", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, true),
				mkTick(2, "49900", "1", 1_000_000_001_000_000, true),
				mkTick(3, "49875", "1", 1_000_000_002_000_000, true),
			}
			bars, err := e.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(1))
			b := bars[0]
			Expect(b.Close.String()).To(Equal("49875.00000000"))
			Expect(b.SellVolume.String()).To(Equal("3.00000000"))
		})
	})

	Context("scenario C: oscillation without breach", func() {
		It("emits no closed bar and peek shows the accumulated extremes", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
				mkTick(2, "50100", "1", 1_000_000_001_000_000, false),
				mkTick(3, "49900", "1", 1_000_000_002_000_000, true),
				mkTick(4, "50120", "1", 1_000_000_003_000_000, false),
			}
			bars, err := e.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			Expect(bars).To(BeEmpty())
			peek := e.PeekIncomplete()
			Expect(peek).NotTo(BeNil())
			Expect(peek.Open.String()).To(Equal("50000.00000000"))
			Expect(peek.High.String()).To(Equal("50120.00000000"))
			Expect(peek.Low.String()).To(Equal("49900.00000000"))
			Expect(peek.Close.String()).To(Equal("50120.00000000"))
		})
	})

	Context("scenario D: exact threshold", func() {
		It("closes because the tick equals the threshold exactly", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
				mkTick(2, "50125", "1", 1_000_000_001_000_000, false),
			}
			bars, err := e.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(1))
		})
	})

	Context("scenario E: gap beyond threshold", func() {
		It("closes exactly one bar, not two", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
				mkTick(2, "51000", "1", 1_000_000_001_000_000, false),
			}
			bars, err := e.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			Expect(bars).To(HaveLen(1))
			b := bars[0]
			Expect(b.Open.String()).To(Equal("50000.00000000"))
			Expect(b.High.String()).To(Equal("51000.00000000"))
			Expect(b.Low.String()).To(Equal("50000.00000000"))
			Expect(b.Close.String()).To(Equal("51000.00000000"))
		})
	})

	Context("scenario F: checkpoint continuity", func() {
		It("produces the same bars whether processed whole or split at a checkpoint", func() {
			allTicks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
				mkTick(2, "50050", "1", 1_000_000_001_000_000, false),
				mkTick(3, "50125", "1", 1_000_000_002_000_000, false),
				mkTick(4, "50200", "1", 1_000_000_003_000_000, false),
				mkTick(5, "50400", "1", 1_000_000_004_000_000, false),
			}

			whole, err := rangebar.NewEngine("BTCUSDT", 250)
			Expect(err).To(BeNil())
			expectedBars, err := whole.ProcessBatch(allTicks)
			Expect(err).To(BeNil())

			split, err := rangebar.NewEngine("BTCUSDT", 250)
			Expect(err).To(BeNil())
			firstBars, err := split.ProcessBatch(allTicks[:3])
			Expect(err).To(BeNil())

			cp := split.TakeCheckpoint()
			restored, err := rangebar.NewEngineFromCheckpoint("BTCUSDT", 250, cp)
			Expect(err).To(BeNil())
			secondBars, err := restored.ProcessBatch(allTicks[3:])
			Expect(err).To(BeNil())

			Expect(append(firstBars, secondBars...)).To(Equal(expectedBars))
		})

		It("rejects a checkpoint for the wrong symbol", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			cp := e.TakeCheckpoint()
			_, err := rangebar.NewEngineFromCheckpoint("ETHUSDT", 250, cp)
			Expect(err).NotTo(BeNil())
		})

		It("rejects a checkpoint for the wrong threshold", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			cp := e.TakeCheckpoint()
			_, err := rangebar.NewEngineFromCheckpoint("BTCUSDT", 300, cp)
			Expect(err).NotTo(BeNil())
		})
	})

	Context("boundary behaviours (§8.2)", func() {
		It("returns empty output with no error for an empty batch", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			bars, err := e.ProcessBatch(nil)
			Expect(err).To(BeNil())
			Expect(bars).To(BeEmpty())
		})
		It("emits no closed bar for a single tick", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			bars, err := e.ProcessBatch([]rangebar.Tick{mkTick(1, "50000", "1", 1_000_000_000_000_000, false)})
			Expect(err).To(BeNil())
			Expect(bars).To(BeEmpty())
			Expect(e.PeekIncomplete()).NotTo(BeNil())
		})
		It("fails with UnsortedTradesError on an out-of-order batch", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(2, "50000", "1", 1_000_000_001_000_000, false),
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
			}
			_, err := e.ProcessBatch(ticks)
			Expect(err).NotTo(BeNil())
			var unsorted *rangebar.UnsortedTradesError
			Expect(err).To(BeAssignableToTypeOf(unsorted))
		})
		It("lets a zero-volume tick affect price but not volume", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
				mkTick(2, "50010", "0", 1_000_000_001_000_000, false),
			}
			_, err := e.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			peek := e.PeekIncomplete()
			Expect(peek.High.String()).To(Equal("50010.00000000"))
			Expect(peek.Volume.String()).To(Equal("1.00000000"))
		})
	})

	Context("overflow (§7)", func() {
		It("returns a typed OverflowError instead of panicking when a bar's own opening volume already can't extend", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "90000000000", 1_000_000_000_000_000, false),
				mkTick(2, "50000", "90000000000", 1_000_000_001_000_000, false),
			}
			bars, err := e.ProcessBatch(ticks)
			Expect(bars).To(BeEmpty())
			Expect(err).NotTo(BeNil())
			var overflow *rangebar.OverflowError
			Expect(err).To(BeAssignableToTypeOf(overflow))
			Expect(err.(*rangebar.OverflowError).Kind).To(Equal(rangebar.OverflowKind_Volume))
		})

		It("propagates the same OverflowError through ProcessOne, the streaming entry point", func() {
			e, _ := rangebar.NewEngine("BTCUSDT", 250)
			_, err := e.ProcessOne(mkTick(1, "50000", "90000000000", 1_000_000_000_000_000, false))
			Expect(err).To(BeNil())
			Expect(func() {
				_, err = e.ProcessOne(mkTick(2, "50000", "90000000000", 1_000_000_001_000_000, false))
			}).NotTo(Panic())
			var overflow *rangebar.OverflowError
			Expect(err).To(BeAssignableToTypeOf(overflow))
		})
	})

	Context("threshold monotonicity (§8.1 property 7)", func() {
		It("produces no fewer bars for a finer threshold", func() {
			ticks := []rangebar.Tick{
				mkTick(1, "50000", "1", 1_000_000_000_000_000, false),
				mkTick(2, "50100", "1", 1_000_000_001_000_000, false),
				mkTick(3, "50200", "1", 1_000_000_002_000_000, false),
				mkTick(4, "50400", "1", 1_000_000_003_000_000, false),
				mkTick(5, "50800", "1", 1_000_000_004_000_000, false),
			}
			fine, _ := rangebar.NewEngine("BTCUSDT", 50)
			coarse, _ := rangebar.NewEngine("BTCUSDT", 500)
			fineBars, err := fine.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			coarseBars, err := coarse.ProcessBatch(ticks)
			Expect(err).To(BeNil())
			Expect(len(fineBars)).To(BeNumerically(">=", len(coarseBars)))
		})
	})
})
