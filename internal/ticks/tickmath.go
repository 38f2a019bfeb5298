// Package ticks implements the concentrated liquidity price curve on
// fixed-width 256-bit integers.
package ticks

import (
	"fmt"

	"github.com/holiman/uint256"

	"jitscope/internal/model"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is the sqrt price at MinTick.
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is the sqrt price at MaxTick.
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")
	// Q96 is 2^96, the scale of a Q64.96 number.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

	maxUint256 = new(uint256.Int).SetAllOne()
	q32Mask    = uint256.NewInt(0xffffffff)

	// ratioAtBit[i] is sqrt(1.0001)^-(2^i) in Q128.128.
	ratioAtBit = [20]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}

	// log base sqrt(1.0001) of 2, Q64.64 times Q64.64 gives Q128.128.
	logSqrt10001Factor = uint256.MustFromDecimal("255738958999603826347141")
	tickLowOffset      = uint256.MustFromDecimal("3402992956809132418596140100660247210")
	tickHighOffset     = uint256.MustFromDecimal("291339464771989622907027621153398088495")
)

// TickToSqrtPrice returns sqrt(1.0001^tick) as a Q64.96 number, rounded up.
func TickToSqrtPrice(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d: %w", tick, model.ErrOutOfBounds)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioAtBit[0])
	} else {
		ratio.Lsh(uint256.NewInt(1), 128)
	}
	for bit := 1; bit < len(ratioAtBit); bit++ {
		if absTick&(1<<uint(bit)) == 0 {
			continue
		}
		// both factors are below 2^128, the product fits
		ratio.Mul(ratio, ratioAtBit[bit])
		ratio.Rsh(ratio, 128)
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	remainder := new(uint256.Int).And(ratio, q32Mask)
	sqrtPrice := new(uint256.Int).Rsh(ratio, 32)
	if !remainder.IsZero() {
		sqrtPrice.AddUint64(sqrtPrice, 1)
	}
	return sqrtPrice, nil
}

// SqrtPriceToTick returns the greatest tick whose sqrt price is <= sqrtPriceX96.
func SqrtPriceToTick(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96 == nil {
		return 0, fmt.Errorf("sqrt price is nil: %w", model.ErrInvalidParameters)
	}
	if sqrtPriceX96.Lt(MinSqrtRatio) || !sqrtPriceX96.Lt(MaxSqrtRatio) {
		return 0, fmt.Errorf("sqrt price %s: %w", sqrtPriceX96.Dec(), model.ErrOutOfBounds)
	}

	ratio := new(uint256.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	r := new(uint256.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	// log2 in signed Q64.64, two's complement
	log2 := signed(int64(msb) - 128)
	log2.Lsh(log2, 64)

	f := new(uint256.Int)
	for i := 0; i < 14; i++ {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f.Rsh(r, 128)
		if !f.IsZero() {
			log2.Or(log2, new(uint256.Int).Lsh(f, uint(63-i)))
			r.Rsh(r, 1)
		}
	}

	logSqrt10001 := new(uint256.Int).Mul(log2, logSqrt10001Factor)

	low := new(uint256.Int).Sub(logSqrt10001, tickLowOffset)
	low.SRsh(low, 128)
	high := new(uint256.Int).Add(logSqrt10001, tickHighOffset)
	high.SRsh(high, 128)

	tickLow := int32(int64(low.Uint64()))
	tickHigh := int32(int64(high.Uint64()))
	if tickLow == tickHigh {
		return tickLow, nil
	}

	highPrice, err := TickToSqrtPrice(tickHigh)
	if err != nil {
		return tickLow, nil
	}
	if highPrice.Cmp(sqrtPriceX96) <= 0 {
		return tickHigh, nil
	}
	return tickLow, nil
}

func signed(v int64) *uint256.Int {
	if v >= 0 {
		return uint256.NewInt(uint64(v))
	}
	out := uint256.NewInt(uint64(-v))
	return out.Neg(out)
}
