package simulate

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	weiDecimals  int32 = 18
	nativeSymbol       = "ETH"
)

// BucketPrice is the fixed USD price table used by preflight. It does not consult the
// oracle.
func BucketPrice(symbol string) decimal.Decimal {
	switch strings.ToUpper(symbol) {
	case "ETH", "WETH":
		return decimal.NewFromInt(2000)
	case "WBTC", "BTC":
		return decimal.NewFromInt(30000)
	default:
		return decimal.NewFromInt(1)
	}
}

func toUSD(amount *big.Int, decimals int32, price decimal.Decimal) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals).Mul(price)
}

// fromUSD converts a USD figure into base units of a token, truncating toward zero.
func fromUSD(usd decimal.Decimal, decimals int32, price decimal.Decimal) *big.Int {
	if !price.IsPositive() {
		return new(big.Int)
	}
	return usd.Div(price).Shift(decimals).Truncate(0).BigInt()
}

func feeOnAmount(amount *big.Int, feePips uint32) *big.Int {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feePips)))
	return fee.Quo(fee, big.NewInt(1_000_000))
}
