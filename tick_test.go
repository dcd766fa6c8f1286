// Copyright (c) 2025 Neomantra Corp

package rangebar_test

import (
	rangebar "github.com/rangebar-go/rangebar"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DataSource", func() {
	It("round-trips through String/FromString", func() {
		for _, ds := range []rangebar.DataSource{
			rangebar.DataSource_CryptoSpot,
			rangebar.DataSource_CryptoLinearFutures,
			rangebar.DataSource_CryptoInverseFutures,
			rangebar.DataSource_Forex,
		} {
			back, err := rangebar.DataSourceFromString(ds.String())
			Expect(err).To(BeNil())
			Expect(back).To(Equal(ds))
		}
	})

	It("rejects an unknown name", func() {
		_, err := rangebar.DataSourceFromString("not-a-source")
		Expect(err).NotTo(BeNil())
	})

	It("flags only forex as IsForex", func() {
		Expect(rangebar.DataSource_Forex.IsForex()).To(BeTrue())
		Expect(rangebar.DataSource_CryptoSpot.IsForex()).To(BeFalse())
	})
})

var _ = Describe("NormalizeTimestampUs", func() {
	It("multiplies a millisecond-scale timestamp by 1000", func() {
		Expect(rangebar.NormalizeTimestampUs(1_700_000_000_000)).To(Equal(int64(1_700_000_000_000_000)))
	})
	It("passes through a microsecond-scale timestamp unchanged", func() {
		Expect(rangebar.NormalizeTimestampUs(1_700_000_000_000_000)).To(Equal(int64(1_700_000_000_000_000)))
	})
})

var _ = Describe("NewTick", func() {
	price := rangebar.MustParse("50000")
	volume := rangebar.MustParse("1")

	It("constructs a valid tick and normalizes its timestamp", func() {
		tick, err := rangebar.NewTick(1, price, volume, 10, 12, 1_700_000_000_000, false, rangebar.DataSource_CryptoSpot)
		Expect(err).To(BeNil())
		Expect(tick.TimestampUs).To(Equal(int64(1_700_000_000_000_000)))
		Expect(tick.IndividualTradeCount()).To(Equal(int64(3)))
	})

	It("rejects a negative price", func() {
		neg := rangebar.MustParse("-1")
		_, err := rangebar.NewTick(1, neg, volume, 1, 1, 1_700_000_000_000, false, rangebar.DataSource_CryptoSpot)
		Expect(err).To(Equal(rangebar.ErrInvalidPrice))
	})

	It("rejects a negative volume", func() {
		neg := rangebar.MustParse("-1")
		_, err := rangebar.NewTick(1, price, neg, 1, 1, 1_700_000_000_000, false, rangebar.DataSource_CryptoSpot)
		Expect(err).To(Equal(rangebar.ErrInvalidPrice))
	})

	It("rejects a timestamp outside the plausible range", func() {
		_, err := rangebar.NewTick(1, price, volume, 1, 1, 1, false, rangebar.DataSource_CryptoSpot)
		Expect(err).To(Equal(rangebar.ErrTimestampOutOfRange))
	})

	It("reports zero individual trades for forex's unset trade IDs", func() {
		tick, err := rangebar.NewTick(rangebar.NoTradeID, price, volume, rangebar.NoTradeID, rangebar.NoTradeID, 1_700_000_000_000_000, false, rangebar.DataSource_Forex)
		Expect(err).To(BeNil())
		Expect(tick.IndividualTradeCount()).To(Equal(int64(0)))
	})
})
