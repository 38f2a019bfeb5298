package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Confidence grades a price quote.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// PriceQuote is a USD price with its provenance.
type PriceQuote struct {
	Price      decimal.Decimal `json:"price"`
	Confidence Confidence      `json:"confidence"`
	Source     string          `json:"source"`
}

// GasCosts holds gas units per execution step.
type GasCosts struct {
	Borrow          uint64 `json:"borrow"`
	AddLiquidity    uint64 `json:"add_liquidity"`
	Swap            uint64 `json:"swap"`
	RemoveLiquidity uint64 `json:"remove_liquidity"`
	Repay           uint64 `json:"repay"`
}

// DefaultGasCosts returns the fixed per-step gas table.
func DefaultGasCosts() GasCosts {
	return GasCosts{
		Borrow:          50_000,
		AddLiquidity:    120_000,
		Swap:            150_000,
		RemoveLiquidity: 100_000,
		Repay:           30_000,
	}
}

// FullCycle is the gas for borrow, mint, swap, burn and repay.
func (g GasCosts) FullCycle() uint64 {
	return g.Borrow + g.AddLiquidity + g.Swap + g.RemoveLiquidity + g.Repay
}

// GasQuote is a gas price together with the unit cost table.
type GasQuote struct {
	GasPrice *big.Int `json:"gas_price"`
	Costs    GasCosts `json:"costs"`
}
