package simulate

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"jitscope/internal/model"
	"jitscope/internal/ticks"
)

var q192 = new(uint256.Int).Lsh(uint256.NewInt(1), 192)

// positionRange returns the requested range aligned to the pool spacing, or a range of
// width ticks centered on the current price.
func positionRange(pool model.PoolState, requested *model.TickRange, width int32) (model.TickRange, bool, error) {
	if requested == nil {
		r, err := ticks.ComputeTickRange(pool.SqrtPriceX96, pool.TickSpacing, width)
		return r, false, err
	}
	r, err := ticks.AlignTickRange(requested.Lower, requested.Upper, pool.TickSpacing)
	if err != nil {
		return model.TickRange{}, false, err
	}
	return r, r != *requested, nil
}

func rangeBounds(r model.TickRange) (*uint256.Int, *uint256.Int, error) {
	sqrtA, err := ticks.TickToSqrtPrice(r.Lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := ticks.TickToSqrtPrice(r.Upper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtA, sqrtB, nil
}

// fractionLiquidity sizes a position from a fraction of the trade input, valued in
// either pool token at the pool price. The result is the largest liquidity that budget
// funds on the side or sides the range needs.
func fractionLiquidity(pool model.PoolState, r model.TickRange, amountIn *big.Int, zeroForOne bool, fraction decimal.Decimal) (*uint256.Int, error) {
	sized := decimal.NewFromBigInt(amountIn, 0).Mul(fraction).Truncate(0).BigInt()
	amount, overflow := uint256.FromBig(sized)
	if overflow {
		return nil, fmt.Errorf("sized amount %s: %w", sized, model.ErrOutOfBounds)
	}
	sqrtA, sqrtB, err := rangeBounds(r)
	if err != nil {
		return nil, err
	}
	other, err := equivalentAmount(amount, pool.SqrtPriceX96, zeroForOne)
	if err != nil {
		return nil, err
	}

	amount0, amount1 := amount, other
	if !zeroForOne {
		amount0, amount1 = other, amount
	}
	return ticks.LiquidityForAmounts(pool.SqrtPriceX96, sqrtA, sqrtB, amount0, amount1)
}

// equivalentAmount converts amount of token0 into token1 at the pool price when
// fromToken0 is set, and the reverse otherwise.
func equivalentAmount(amount, sqrtPrice *uint256.Int, fromToken0 bool) (*uint256.Int, error) {
	priceX192, overflow := new(uint256.Int).MulOverflow(sqrtPrice, sqrtPrice)
	if overflow {
		return nil, fmt.Errorf("price square: %w", model.ErrOutOfBounds)
	}
	var out *uint256.Int
	if fromToken0 {
		out, overflow = new(uint256.Int).MulDivOverflow(amount, priceX192, q192)
	} else {
		out, overflow = new(uint256.Int).MulDivOverflow(amount, q192, priceX192)
	}
	if overflow {
		return nil, fmt.Errorf("convert amount: %w", model.ErrOutOfBounds)
	}
	return out, nil
}

// maxPositionLiquidity is share of the pool's active liquidity.
func maxPositionLiquidity(poolLiquidity *uint256.Int, share decimal.Decimal) *uint256.Int {
	limit := decimal.NewFromBigInt(poolLiquidity.ToBig(), 0).Mul(share).Truncate(0).BigInt()
	out, overflow := uint256.FromBig(limit)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}
