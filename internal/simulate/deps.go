// Package simulate decides whether wrapping a pending swap in a just-in-time
// liquidity position pays, first cheaply and then step by step.
package simulate

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"jitscope/internal/gas"
	"jitscope/internal/model"
)

// PoolStateProvider returns pool snapshots; nil block means latest.
type PoolStateProvider interface {
	PoolState(ctx context.Context, addr common.Address, block *big.Int) (model.PoolState, error)
}

// TokenResolver returns ERC20 metadata.
type TokenResolver interface {
	Token(ctx context.Context, addr common.Address) (model.Token, error)
}

// LoanValidator selects a lender for a borrow and encodes the borrow call.
type LoanValidator interface {
	ValidateLoan(ctx context.Context, token common.Address, amount *big.Int) (model.FlashloanQuote, error)
	BuildBorrowCall(quote model.FlashloanQuote, receiver common.Address, payload []byte) (model.BorrowCall, error)
}

const (
	defaultRangeWidth  = 1200
	defaultConcurrency = 5
	defaultTimeout     = 2 * time.Second
)

// Config tunes both estimators.
type Config struct {
	// RangeWidth is the total width in ticks of the range placed around the current tick.
	RangeWidth int32
	// LiquidityFraction is the share of the trade input sized into the position.
	LiquidityFraction decimal.Decimal
	// MaxLiquidityShare caps position liquidity relative to the pool's active liquidity.
	MaxLiquidityShare decimal.Decimal
	MaxGasPrice       *big.Int
	MinProfitUSD      decimal.Decimal
	// TargetNotionalUSD, when positive, sizes preflight positions by USD value.
	TargetNotionalUSD decimal.Decimal
	Concurrency       int
	Timeout           time.Duration
	// Receiver is the contract that receives borrowed funds in encoded borrow calls.
	Receiver common.Address
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		RangeWidth:        defaultRangeWidth,
		LiquidityFraction: decimal.NewFromFloat(0.1),
		MaxLiquidityShare: decimal.NewFromFloat(0.1),
		MaxGasPrice:       gas.Gwei(500),
		MinProfitUSD:      decimal.Zero,
		Concurrency:       defaultConcurrency,
		Timeout:           defaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RangeWidth <= 0 {
		c.RangeWidth = d.RangeWidth
	}
	if !c.LiquidityFraction.IsPositive() {
		c.LiquidityFraction = d.LiquidityFraction
	}
	if !c.MaxLiquidityShare.IsPositive() {
		c.MaxLiquidityShare = d.MaxLiquidityShare
	}
	if c.MaxGasPrice == nil || c.MaxGasPrice.Sign() <= 0 {
		c.MaxGasPrice = d.MaxGasPrice
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}
