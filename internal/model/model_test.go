package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickRangeContains(t *testing.T) {
	r := TickRange{Lower: -60, Upper: 60}
	assert.True(t, r.Contains(-60))
	assert.True(t, r.Contains(0))
	assert.False(t, r.Contains(60))
	assert.Equal(t, int32(120), r.Width())
	assert.Equal(t, "[-60, 60]", r.String())
}

func TestPoolStateDirection(t *testing.T) {
	p := PoolState{Token0: common.HexToAddress("0x01"), Token1: common.HexToAddress("0x02")}
	assert.Equal(t, p.Token0, p.TokenIn(true))
	assert.Equal(t, p.Token1, p.TokenOut(true))
	assert.Equal(t, p.Token1, p.TokenIn(false))
	assert.Equal(t, p.Token0, p.TokenOut(false))
}

func TestStepChecklistCompleted(t *testing.T) {
	steps := StepChecklist{Borrow: true, AddLiquidity: true, Swap: true, RemoveLiquidity: true}
	assert.False(t, steps.Completed())
	steps.Repay = true
	assert.True(t, steps.Completed())
}

func TestPreflightRecordKeepsArbitraryPrecision(t *testing.T) {
	huge, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)

	res := PreflightResult{
		Pool:         common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8"),
		Success:      true,
		Profitable:   true,
		Range:        TickRange{Lower: -600, Upper: 600},
		Quote:        &FlashloanQuote{Lender: LenderAave, Fee: big.NewInt(5)},
		NetProfit:    huge,
		NetProfitUSD: decimal.RequireFromString("42.000000000000000001"),
		Breakdown:    CostBreakdown{FeesEarned: huge},
	}
	rec := PreflightRecord("0xabc", res, "2024-01-01T00:00:00Z")
	assert.Equal(t, ResultKindPreflight, rec.Kind)
	assert.Equal(t, "aave", rec.Lender)
	assert.Equal(t, "0", rec.GasCost)
	assert.Equal(t, huge.String(), rec.NetProfit)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var back ResultRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)

	parsed, ok := new(big.Int).SetString(back.FeesEarned, 10)
	require.True(t, ok)
	assert.Equal(t, 0, parsed.Cmp(huge))
	assert.Equal(t, "42.000000000000000001", back.NetProfitUSD)
}

func TestResultJSONExposesProfitField(t *testing.T) {
	data, err := json.Marshal(PreflightResult{NetProfitUSD: decimal.NewFromInt(-3), Err: ErrPoolNotFound})
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "-3", raw["expected_net_profit_usd"])
	_, hasErr := raw["Err"]
	assert.False(t, hasErr)
}

func TestFastRecord(t *testing.T) {
	rec := FastRecord("id-1", FastResult{Reason: "insufficient profit", NetProfitUSD: decimal.Zero}, "ts")
	assert.Equal(t, ResultKindFast, rec.Kind)
	assert.Equal(t, "insufficient profit", rec.Reason)
	assert.Equal(t, "0", rec.FeesEarned)
	assert.Equal(t, "0", rec.NetProfit)
}
