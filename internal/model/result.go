package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// CostBreakdown itemizes the revenue and costs behind a decision.
type CostBreakdown struct {
	FeesEarned    *big.Int        `json:"fees_earned"`
	FeesEarnedUSD decimal.Decimal `json:"fees_earned_usd"`
	GasUnits      uint64          `json:"gas_units"`
	GasCost       *big.Int        `json:"gas_cost"`
	GasCostUSD    decimal.Decimal `json:"gas_cost_usd"`
	BorrowFee     *big.Int        `json:"borrow_fee"`
	BorrowFeeUSD  decimal.Decimal `json:"borrow_fee_usd"`
	// PriceInRange reports whether the pool tick sat inside the position range.
	PriceInRange  bool            `json:"price_in_range"`
}

// FastResult is the outcome of the millisecond profitability filter.
type FastResult struct {
	Pool              common.Address  `json:"pool"`
	Success           bool            `json:"success"`
	Profitable        bool            `json:"profitable"`
	Range             TickRange       `json:"range"`
	PositionLiquidity *uint256.Int    `json:"position_liquidity,omitempty"`
	NetProfit         *big.Int        `json:"net_profit"`
	NetProfitUSD      decimal.Decimal `json:"net_profit_usd"`
	Breakdown         CostBreakdown   `json:"breakdown"`
	Reason            string          `json:"reason,omitempty"`
	Err               error           `json:"-"`
}

// StepChecklist records which preflight execution steps completed.
type StepChecklist struct {
	Borrow          bool `json:"borrow"`
	AddLiquidity    bool `json:"add_liquidity"`
	Swap            bool `json:"swap"`
	RemoveLiquidity bool `json:"remove_liquidity"`
	Repay           bool `json:"repay"`
}

// Completed reports whether every step ran.
func (s StepChecklist) Completed() bool {
	return s.Borrow && s.AddLiquidity && s.Swap && s.RemoveLiquidity && s.Repay
}

// Validations records which preflight gates passed.
type Validations struct {
	Pool            bool `json:"pool"`
	Loan            bool `json:"loan"`
	LiquiditySizing bool `json:"liquidity_sizing"`
	Gas             bool `json:"gas"`
	Profitability   bool `json:"profitability"`
}

// PreflightResult is the outcome of a full borrow-to-repay dry run.
type PreflightResult struct {
	Pool          common.Address  `json:"pool"`
	Success       bool            `json:"success"`
	Profitable    bool            `json:"profitable"`
	Steps         StepChecklist   `json:"steps"`
	Validations   Validations     `json:"validations"`
	Range         TickRange       `json:"range"`
	RangeAdjusted bool            `json:"range_adjusted"`
	Position      *Position       `json:"position,omitempty"`
	BorrowToken   Token           `json:"borrow_token"`
	Quote         *FlashloanQuote `json:"quote,omitempty"`
	BorrowCall    *BorrowCall     `json:"borrow_call,omitempty"`
	GasUsed       uint64          `json:"gas_used"`
	NetProfit     *big.Int        `json:"net_profit"`
	NetProfitUSD  decimal.Decimal `json:"expected_net_profit_usd"`
	Breakdown     CostBreakdown   `json:"breakdown"`
	RevertReason  string          `json:"revert_reason,omitempty"`
	Err           error           `json:"-"`
}

// ResultKind distinguishes persisted result shapes.
type ResultKind string

const (
	ResultKindFast      ResultKind = "fast"
	ResultKindPreflight ResultKind = "preflight"
)

// ResultRecord is the flat storage representation of a simulation result.
// Amounts are decimal strings so they round-trip exactly.
type ResultRecord struct {
	CandidateID  string     `json:"candidate_id"`
	Kind         ResultKind `json:"kind"`
	Pool         string     `json:"pool"`
	Success      bool       `json:"success"`
	Profitable   bool       `json:"profitable"`
	TickLower    int32      `json:"tick_lower"`
	TickUpper    int32      `json:"tick_upper"`
	Lender       string     `json:"lender,omitempty"`
	FeesEarned   string     `json:"fees_earned"`
	GasCost      string     `json:"gas_cost"`
	BorrowFee    string     `json:"borrow_fee"`
	NetProfit    string     `json:"net_profit"`
	NetProfitUSD string     `json:"net_profit_usd"`
	Reason       string     `json:"reason,omitempty"`
	SimulatedAt  string     `json:"simulated_at"`
}

// FastRecord flattens a FastResult.
func FastRecord(id string, r FastResult, simulatedAt string) ResultRecord {
	return ResultRecord{
		CandidateID:  id,
		Kind:         ResultKindFast,
		Pool:         r.Pool.Hex(),
		Success:      r.Success,
		Profitable:   r.Profitable,
		TickLower:    r.Range.Lower,
		TickUpper:    r.Range.Upper,
		FeesEarned:   bigString(r.Breakdown.FeesEarned),
		GasCost:      bigString(r.Breakdown.GasCost),
		BorrowFee:    bigString(r.Breakdown.BorrowFee),
		NetProfit:    bigString(r.NetProfit),
		NetProfitUSD: r.NetProfitUSD.String(),
		Reason:       r.Reason,
		SimulatedAt:  simulatedAt,
	}
}

// PreflightRecord flattens a PreflightResult.
func PreflightRecord(id string, r PreflightResult, simulatedAt string) ResultRecord {
	rec := ResultRecord{
		CandidateID:  id,
		Kind:         ResultKindPreflight,
		Pool:         r.Pool.Hex(),
		Success:      r.Success,
		Profitable:   r.Profitable,
		TickLower:    r.Range.Lower,
		TickUpper:    r.Range.Upper,
		FeesEarned:   bigString(r.Breakdown.FeesEarned),
		GasCost:      bigString(r.Breakdown.GasCost),
		BorrowFee:    bigString(r.Breakdown.BorrowFee),
		NetProfit:    bigString(r.NetProfit),
		NetProfitUSD: r.NetProfitUSD.String(),
		Reason:       r.RevertReason,
		SimulatedAt:  simulatedAt,
	}
	if r.Quote != nil {
		rec.Lender = string(r.Quote.Lender)
	}
	return rec
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
