// Copyright (c) 2025 Neomantra Corp

package rangebar_test

import (
	rangebar "github.com/rangebar-go/rangebar"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tier1 registry", func() {
	It("recognizes curated spot symbols", func() {
		Expect(rangebar.IsTier1(rangebar.DataSource_CryptoSpot, "BTCUSDT")).To(BeTrue())
	})

	It("does not recognize an uncurated symbol", func() {
		Expect(rangebar.IsTier1(rangebar.DataSource_CryptoSpot, "DOGEUSDT")).To(BeFalse())
	})

	It("keeps per-source registrations distinct", func() {
		Expect(rangebar.IsTier1(rangebar.DataSource_Forex, "BTCUSDT")).To(BeFalse())
	})

	It("looks up a default threshold for a known entry", func() {
		entry, ok := rangebar.LookupTier1(rangebar.DataSource_Forex, "EURUSD")
		Expect(ok).To(BeTrue())
		Expect(entry.DefaultThresholdTenthBp).To(Equal(uint32(50)))
		Expect(entry.Label).NotTo(BeEmpty())
	})

	It("lists only symbols for the requested source", func() {
		symbols := rangebar.Tier1Symbols(rangebar.DataSource_Forex)
		Expect(symbols).To(ContainElement("EURUSD"))
		Expect(symbols).NotTo(ContainElement("BTCUSDT"))
	})
})
