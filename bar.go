// Copyright (c) 2025 Neomantra Corp

package rangebar

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Turnover128 is a 128-bit signed integer representing scaled turnover
// (price * volume summed over a bar), emulated as a high/low pair of int64s
// since this package targets platforms without a native int128. Only
// addition is needed on the hot path (§3.3/§9: "turnover is computed as an
// i128 product ... a target without native 128-bit integers must emulate
// it, not approximate via floating point").
type Turnover128 struct {
	Hi int64 // sign-extended high 64 bits
	Lo uint64
}

// ZeroTurnover is the additive identity for Turnover128.
var ZeroTurnover = Turnover128{}

// addProduct adds scaled_price*scaled_volume (both non-negative, volume may
// be zero) to t, returning the updated value. The second result is false
// when the 128-bit sum overflows; the engine reports that as an
// OverflowError of kind OverflowKind_Turnover.
func (t Turnover128) addProduct(priceScaled, volumeScaled int64) (Turnover128, bool) {
	hi, lo := productHiLo(priceScaled, volumeScaled)
	return t.add(Turnover128{Hi: hi, Lo: lo})
}

func (t Turnover128) add(o Turnover128) (Turnover128, bool) {
	sumLo := t.Lo + o.Lo
	carry := int64(0)
	if sumLo < t.Lo {
		carry = 1
	}
	sumHi := t.Hi + o.Hi + carry
	// Overflow iff both operands' high limbs share a sign and the result's
	// sign differs from theirs — same test as FixedPoint.Add, applied to
	// the high limb since it carries the sign.
	if (t.Hi > 0 && o.Hi > 0 && sumHi < 0) || (t.Hi < 0 && o.Hi < 0 && sumHi > 0) {
		return Turnover128{}, false
	}
	return Turnover128{Hi: sumHi, Lo: sumLo}, true
}

// productHiLo computes a*b for two non-negative int64 operands as a signed
// 128-bit high/low pair.
func productHiLo(a, b int64) (hi int64, lo uint64) {
	h, l := bits.Mul64(uint64(a), uint64(b))
	return int64(h), l
}

// DivScaled divides the 128-bit turnover by a positive scaled volume,
// returning the quotient as a FixedPoint (used once, at bar close, to
// compute VWAP = turnover / volume per §3.3).
func (t Turnover128) DivScaled(volumeScaled int64) FixedPoint {
	if volumeScaled == 0 {
		return FixedPoint{}
	}
	// turnover is scaled by Scale^2 (price_scaled * volume_scaled); dividing
	// by volume_scaled leaves a price-scaled (Scale^1) result directly, no
	// extra rescale needed.
	q, _ := bits.Div64(uint64(t.Hi), t.Lo, uint64(volumeScaled))
	return FixedPoint{scaled: int64(q)}
}

// String renders the turnover as a decimal string with 8 fractional digits
// over Scale^2 (i.e. the same FixedPoint rendering convention, but for a
// value that may exceed int64's scaled range). Digits past the eighth
// fractional place are truncated.
func (t Turnover128) String() string {
	v := new(big.Int).Lsh(big.NewInt(t.Hi), 64)
	v.Add(v, new(big.Int).SetUint64(t.Lo))
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	v.Quo(v, big.NewInt(Scale)) // Scale^2 units -> Scale units
	intPart, fracPart := new(big.Int).QuoRem(v, big.NewInt(Scale), new(big.Int))
	return fmt.Sprintf("%s%s.%08d", sign, intPart.String(), fracPart.Int64())
}

// RangeBar is the OHLCV aggregate the state machine (C3) emits. It is
// constructed exclusively by the engine; external code never mutates one.
type RangeBar struct {
	Open  FixedPoint
	High  FixedPoint
	Low   FixedPoint
	Close FixedPoint

	Volume   FixedPoint
	Turnover Turnover128

	AggTradeCount       int64
	IndividualTradeCount int64

	OpenTimeUs  int64
	CloseTimeUs int64

	FirstAggTradeID int64
	LastAggTradeID  int64

	BuyVolume   FixedPoint
	SellVolume  FixedPoint
	BuyTurnover Turnover128
	SellTurnover Turnover128

	BuyTradeCount  int64
	SellTradeCount int64

	// VWAP is computed once at close as Turnover / Volume.
	VWAP FixedPoint

	DataSource DataSource
}

// CheckInvariants verifies §3.3's per-bar invariants against a threshold in
// tenths of a basis point: high/low bound open and close, open_time <=
// close_time, close equals high or low, a threshold was reached, and volume
// and turnover equal their buy plus sell parts. Trade-count sums and the
// cross-bar invariant (bar N+1 opening where bar N closed) are not checked.
// Returns nil if all checked invariants hold. Intended for
// tests and for defensive assertions in the batch engine's analysis pass,
// not for the hot path.
func (b *RangeBar) CheckInvariants(thresholdTenthBp uint32) error {
	if b.High.LessThan(Max(b.Open, b.Close)) {
		return fmt.Errorf("rangebar: invariant violated: high %s < max(open,close)", b.High)
	}
	if b.Low.GreaterThan(Min(b.Open, b.Close)) {
		return fmt.Errorf("rangebar: invariant violated: low %s > min(open,close)", b.Low)
	}
	if b.OpenTimeUs > b.CloseTimeUs {
		return fmt.Errorf("rangebar: invariant violated: open_time > close_time")
	}
	if !b.Close.Equal(b.High) && !b.Close.Equal(b.Low) {
		return fmt.Errorf("rangebar: invariant violated: close is neither high nor low")
	}
	upper, lower, err := b.Open.Thresholds(thresholdTenthBp)
	if err != nil {
		return err
	}
	breachedUp := b.High.GreaterThan(b.Open) && !b.High.LessThan(upper)
	breachedDown := b.Low.LessThan(b.Open) && !b.Low.GreaterThan(lower)
	if !breachedUp && !breachedDown {
		return fmt.Errorf("rangebar: invariant violated: neither threshold breached")
	}
	sumVolume, err := b.BuyVolume.Add(b.SellVolume)
	if err != nil {
		return err
	}
	if !sumVolume.Equal(b.Volume) {
		return fmt.Errorf("rangebar: invariant violated: volume != buy_volume + sell_volume")
	}
	sumTurnover, ok := b.BuyTurnover.add(b.SellTurnover)
	if !ok || sumTurnover != b.Turnover {
		return fmt.Errorf("rangebar: invariant violated: turnover != buy_turnover + sell_turnover")
	}
	return nil
}
