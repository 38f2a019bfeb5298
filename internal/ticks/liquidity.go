package ticks

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"jitscope/internal/model"
)

// maxLiquidityBits is the width of a pool's liquidity slot.
const maxLiquidityBits = 128

// LiquidityForAmount0 returns the liquidity that amount0 of token0 supports for a
// position between sqrtA and sqrtB at the current price sqrtPrice. A position priced
// entirely in token1 holds no token0, so the result is zero.
func LiquidityForAmount0(sqrtPrice, sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	lower, upper, err := orderedBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if sqrtPrice == nil || amount0 == nil {
		return nil, fmt.Errorf("liquidity for amount0: nil input: %w", model.ErrInvalidParameters)
	}

	switch {
	case sqrtPrice.Cmp(lower) <= 0:
		return liquidityForAmount0(lower, upper, amount0)
	case sqrtPrice.Lt(upper):
		return liquidityForAmount0(sqrtPrice, upper, amount0)
	default:
		return new(uint256.Int), nil
	}
}

// LiquidityForAmount1 returns the liquidity that amount1 of token1 supports. A
// position priced entirely in token0 holds no token1, so the result is zero.
func LiquidityForAmount1(sqrtPrice, sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	lower, upper, err := orderedBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if sqrtPrice == nil || amount1 == nil {
		return nil, fmt.Errorf("liquidity for amount1: nil input: %w", model.ErrInvalidParameters)
	}

	switch {
	case !sqrtPrice.Lt(upper):
		return liquidityForAmount1(lower, upper, amount1)
	case sqrtPrice.Gt(lower):
		return liquidityForAmount1(lower, sqrtPrice, amount1)
	default:
		return new(uint256.Int), nil
	}
}

// LiquidityForAmounts returns the largest liquidity both amounts can fund.
func LiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	lower, upper, err := orderedBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	if sqrtPrice == nil {
		return nil, fmt.Errorf("liquidity for amounts: nil price: %w", model.ErrInvalidParameters)
	}

	switch {
	case sqrtPrice.Cmp(lower) <= 0:
		return LiquidityForAmount0(sqrtPrice, lower, upper, amount0)
	case !sqrtPrice.Lt(upper):
		return LiquidityForAmount1(sqrtPrice, lower, upper, amount1)
	}

	l0, err := LiquidityForAmount0(sqrtPrice, lower, upper, amount0)
	if err != nil {
		return nil, err
	}
	l1, err := LiquidityForAmount1(sqrtPrice, lower, upper, amount1)
	if err != nil {
		return nil, err
	}
	if l0.Lt(l1) {
		return l0, nil
	}
	return l1, nil
}

// AmountsForLiquidity returns the token amounts a position of the given liquidity
// holds at sqrtPrice.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	lower, upper, err := orderedBounds(sqrtA, sqrtB)
	if err != nil {
		return nil, nil, err
	}
	if sqrtPrice == nil || liquidity == nil {
		return nil, nil, fmt.Errorf("amounts for liquidity: nil input: %w", model.ErrInvalidParameters)
	}
	if liquidity.BitLen() > maxLiquidityBits {
		return nil, nil, fmt.Errorf("liquidity exceeds uint128: %w", model.ErrOutOfBounds)
	}

	amount0 := new(uint256.Int)
	amount1 := new(uint256.Int)
	switch {
	case sqrtPrice.Cmp(lower) <= 0:
		amount0, err = amount0ForLiquidity(lower, upper, liquidity)
	case sqrtPrice.Lt(upper):
		amount0, err = amount0ForLiquidity(sqrtPrice, upper, liquidity)
		if err == nil {
			amount1, err = amount1ForLiquidity(lower, sqrtPrice, liquidity)
		}
	default:
		amount1, err = amount1ForLiquidity(lower, upper, liquidity)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// PositionAt evaluates a tick range and liquidity at the current sqrt price.
func PositionAt(sqrtPrice *uint256.Int, r model.TickRange, liquidity *uint256.Int) (model.Position, error) {
	sqrtA, err := TickToSqrtPrice(r.Lower)
	if err != nil {
		return model.Position{}, err
	}
	sqrtB, err := TickToSqrtPrice(r.Upper)
	if err != nil {
		return model.Position{}, err
	}
	amount0, amount1, err := AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity)
	if err != nil {
		return model.Position{}, err
	}
	return model.Position{
		Range:     r,
		Liquidity: new(uint256.Int).Set(liquidity),
		Amount0:   amount0,
		Amount1:   amount1,
	}, nil
}

// unitLiquidity is the reference liquidity used to price a range.
var unitLiquidity = uint256.NewInt(1_000_000_000_000_000_000)

// ComputeOptimalLiquidity scales a unit of liquidity so the position is worth
// targetUSD at the given token prices. A range worth nothing per unit yields zero.
func ComputeOptimalLiquidity(
	sqrtPrice, sqrtA, sqrtB *uint256.Int,
	targetUSD decimal.Decimal,
	token0, token1 model.Token,
	price0USD, price1USD decimal.Decimal,
) (*uint256.Int, error) {
	if targetUSD.Sign() <= 0 {
		return new(uint256.Int), nil
	}

	amount0, amount1, err := AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, unitLiquidity)
	if err != nil {
		return nil, err
	}

	value0 := decimal.NewFromBigInt(amount0.ToBig(), -int32(token0.Decimals)).Mul(price0USD)
	value1 := decimal.NewFromBigInt(amount1.ToBig(), -int32(token1.Decimals)).Mul(price1USD)
	perUnit := value0.Add(value1)
	if perUnit.Sign() <= 0 {
		return new(uint256.Int), nil
	}

	scaled := decimal.NewFromBigInt(unitLiquidity.ToBig(), 0).Mul(targetUSD).Div(perUnit).Floor()
	liquidity, overflow := uint256.FromBig(scaled.BigInt())
	if overflow || liquidity.BitLen() > maxLiquidityBits {
		return nil, fmt.Errorf("optimal liquidity exceeds uint128: %w", model.ErrOutOfBounds)
	}
	return liquidity, nil
}

func orderedBounds(sqrtA, sqrtB *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if sqrtA == nil || sqrtB == nil {
		return nil, nil, fmt.Errorf("range bound is nil: %w", model.ErrInvalidParameters)
	}
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, nil, fmt.Errorf("range bound is zero: %w", model.ErrOutOfBounds)
	}
	if sqrtA.Eq(sqrtB) {
		return nil, nil, fmt.Errorf("empty price range: %w", model.ErrInvalidParameters)
	}
	return sqrtA, sqrtB, nil
}

// liquidityForAmount0 computes amount0 * (a*b/Q96) / (b-a) for a < b.
func liquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	intermediate, overflow := new(uint256.Int).MulDivOverflow(sqrtA, sqrtB, Q96)
	if overflow {
		return nil, fmt.Errorf("liquidity for amount0 intermediate: %w", model.ErrOutOfBounds)
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	liquidity, overflow := new(uint256.Int).MulDivOverflow(amount0, intermediate, diff)
	if overflow || liquidity.BitLen() > maxLiquidityBits {
		return nil, fmt.Errorf("liquidity for amount0: %w", model.ErrOutOfBounds)
	}
	return liquidity, nil
}

// liquidityForAmount1 computes amount1 * Q96 / (b-a) for a < b.
func liquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	liquidity, overflow := new(uint256.Int).MulDivOverflow(amount1, Q96, diff)
	if overflow || liquidity.BitLen() > maxLiquidityBits {
		return nil, fmt.Errorf("liquidity for amount1: %w", model.ErrOutOfBounds)
	}
	return liquidity, nil
}

// amount0ForLiquidity computes (L << 96) * (b-a) / b / a for a < b.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	shifted := new(uint256.Int).Lsh(liquidity, 96)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	amount, overflow := new(uint256.Int).MulDivOverflow(shifted, diff, sqrtB)
	if overflow {
		return nil, fmt.Errorf("amount0 for liquidity: %w", model.ErrOutOfBounds)
	}
	return amount.Div(amount, sqrtA), nil
}

// amount1ForLiquidity computes L * (b-a) / Q96 for a < b.
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	amount, overflow := new(uint256.Int).MulDivOverflow(liquidity, diff, Q96)
	if overflow {
		return nil, fmt.Errorf("amount1 for liquidity: %w", model.ErrOutOfBounds)
	}
	return amount, nil
}
