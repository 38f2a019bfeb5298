package lender

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/chain/chaintest"
	"jitscope/internal/dex"
	"jitscope/internal/model"
)

var (
	weth     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	vault    = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
	aavePool = common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")
	aWETH    = common.HexToAddress("0x4d5F47FA6A74757f35C14fD3a6Ef8E3C9BC514E8")
	receiver = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type countingSource struct {
	*StubSource
	queries int
	err     error
}

func (c *countingSource) MaxAvailable(ctx context.Context, token common.Address) (*big.Int, error) {
	c.queries++
	if c.err != nil {
		return nil, c.err
	}
	return c.StubSource.MaxAvailable(ctx, token)
}

func tokens() *dex.TokenRegistry {
	return dex.NewTokenRegistry(nil, []model.Token{
		{Address: weth, Symbol: "WETH", Decimals: 18},
		{Address: usdc, Symbol: "USDC", Decimals: 6},
	}, nil)
}

func TestSelectPrefersZeroFee(t *testing.T) {
	zero := NewStubSource(model.LenderBalancer, vault, ether(10_000), nil)
	fee := NewStubSource(model.LenderAave, aavePool, ether(10_000), nil)
	o := NewOrchestrator(zero, fee, tokens(), Config{ChainID: 1}, nil)

	for i := 0; i < 3; i++ {
		sel := o.SelectLender(context.Background(), weth, ether(1000))
		require.True(t, sel.OK, sel.Reason)
		assert.Equal(t, model.LenderBalancer, sel.Quote.Lender)
		assert.Equal(t, int64(0), sel.Quote.Fee.Int64())
		assert.Equal(t, vault, sel.Quote.PoolAddress)
	}
}

func TestSelectFallsBackToFeeCharging(t *testing.T) {
	zero := NewStubSource(model.LenderBalancer, vault, ether(10), nil)
	fee := NewStubSource(model.LenderAave, aavePool, ether(10_000), nil)
	o := NewOrchestrator(zero, fee, tokens(), Config{ChainID: 1}, nil)

	sel := o.SelectLender(context.Background(), weth, ether(1000))
	require.True(t, sel.OK, sel.Reason)
	assert.Equal(t, model.LenderAave, sel.Quote.Lender)
	assert.Equal(t, "500000000000000000", sel.Quote.Fee.String())
	assert.Equal(t, ether(10_000).String(), sel.Quote.MaxAvailable.String())
}

func TestSelectNoLiquidity(t *testing.T) {
	zero := NewStubSource(model.LenderBalancer, vault, ether(1), nil)
	fee := &countingSource{StubSource: NewStubSource(model.LenderAave, aavePool, ether(1), nil), err: errors.New("rpc down")}
	o := NewOrchestrator(zero, fee, tokens(), Config{ChainID: 1}, nil)

	sel := o.SelectLender(context.Background(), weth, ether(5))
	assert.False(t, sel.OK)
	assert.ErrorIs(t, sel.Err, model.ErrNoLiquidityAvailable)
	assert.Contains(t, sel.Reason, "no liquidity available")
	assert.Contains(t, sel.Reason, "rpc down")
}

func TestCapCheckedBeforeAdapters(t *testing.T) {
	zero := &countingSource{StubSource: NewStubSource(model.LenderBalancer, vault, ether(1_000_000), nil)}
	fee := &countingSource{StubSource: NewStubSource(model.LenderAave, aavePool, ether(1_000_000), nil)}
	o := NewOrchestrator(zero, fee, tokens(), Config{ChainID: 1}, nil)

	sel := o.SelectLender(context.Background(), weth, ether(6000))
	assert.False(t, sel.OK)
	assert.ErrorIs(t, sel.Err, model.ErrNotionalCapExceeded)
	assert.Contains(t, sel.Reason, "notional cap exceeded")
	assert.Zero(t, zero.queries)
	assert.Zero(t, fee.queries)
}

func TestCapOverrideAndDefaults(t *testing.T) {
	zero := NewStubSource(model.LenderBalancer, vault, new(big.Int).Lsh(big.NewInt(1), 200), nil)
	o := NewOrchestrator(zero, nil, tokens(), Config{ChainID: 1, NotionalCapUSD: decimal.NewFromInt(100)}, nil)
	assert.Equal(t, "100", o.NotionalCap().String())
	assert.Equal(t, "5000000", NewOrchestrator(zero, nil, tokens(), Config{ChainID: 8453}, nil).NotionalCap().String())

	sel := o.SelectLender(context.Background(), usdc, big.NewInt(100_000_000))
	assert.True(t, sel.OK, sel.Reason)
	sel = o.SelectLender(context.Background(), usdc, big.NewInt(100_000_001))
	assert.ErrorIs(t, sel.Err, model.ErrNotionalCapExceeded)

	assert.True(t, DefaultNotionalCap(1).Equal(decimal.NewFromInt(10_000_000)))
	assert.True(t, DefaultNotionalCap(42161).Equal(decimal.NewFromInt(5_000_000)))
	assert.True(t, DefaultNotionalCap(137).Equal(decimal.NewFromInt(1_000_000)))
}

func TestSelectRejectsInvalidInput(t *testing.T) {
	o := NewOrchestrator(NewStubSource(model.LenderBalancer, vault, ether(1), nil), nil, nil, Config{}, nil)

	assert.ErrorIs(t, o.SelectLender(context.Background(), weth, big.NewInt(0)).Err, model.ErrInvalidParameters)
	assert.ErrorIs(t, o.SelectLender(context.Background(), common.Address{}, big.NewInt(1)).Err, model.ErrInvalidParameters)
}

func TestClassifier(t *testing.T) {
	assert.Equal(t, BucketNative, Classify("weth"))
	assert.Equal(t, BucketStable, Classify("USDC"))
	assert.Equal(t, BucketOther, Classify("UNI"))

	notional := NotionalUSD(model.Token{Symbol: "USDC", Decimals: 6}, big.NewInt(2_500_000))
	assert.Equal(t, "2.5", notional.String())
	notional = NotionalUSD(model.Token{Decimals: 18}, ether(3))
	assert.Equal(t, "6000", notional.String())
}

func TestBalancerSourceReadsVaultBalance(t *testing.T) {
	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)
	caller := chaintest.NewCaller()
	caller.Return(weth, erc20, "balanceOf", ether(42))

	available, err := NewBalancerSource(caller, vault).MaxAvailable(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, ether(42).String(), available.String())
}

func TestAaveSourceReadsReserve(t *testing.T) {
	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)
	pool, err := AavePoolABI()
	require.NoError(t, err)

	zero := big.NewInt(0)
	caller := chaintest.NewCaller()
	caller.Return(aavePool, pool, "getReserveData",
		zero, zero, zero, zero, zero, zero, zero, uint16(0),
		aWETH, common.Address{}, common.Address{}, common.Address{},
		zero, zero, zero)
	caller.Return(weth, erc20, "balanceOf", ether(7))

	source := NewAaveSource(caller, aavePool)
	available, err := source.MaxAvailable(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, ether(7).String(), available.String())
	assert.Equal(t, "5000000000000000", source.QuoteFee(weth, ether(10)).String())
}

func TestBuildBorrowCall(t *testing.T) {
	zero := NewStubSource(model.LenderBalancer, vault, ether(10), nil)
	fee := NewStubSource(model.LenderAave, aavePool, ether(10), nil)
	o := NewOrchestrator(zero, fee, tokens(), Config{ChainID: 1}, nil)

	vaultABI, err := BalancerVaultABI()
	require.NoError(t, err)
	call, err := o.BuildBorrowCall(model.FlashloanQuote{Lender: model.LenderBalancer, Token: weth, Amount: ether(1)}, receiver, nil)
	require.NoError(t, err)
	assert.Equal(t, vault, call.To)
	assert.Equal(t, vaultABI.Methods["flashLoan"].ID, call.Data[:4])

	args, err := vaultABI.Methods["flashLoan"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, receiver, args[0])
	assert.Equal(t, []common.Address{weth}, args[1])

	poolABI, err := AavePoolABI()
	require.NoError(t, err)
	call, err = o.BuildBorrowCall(model.FlashloanQuote{Lender: model.LenderAave, Token: weth, Amount: ether(1)}, receiver, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, aavePool, call.To)
	assert.Equal(t, poolABI.Methods["flashLoanSimple"].ID, call.Data[:4])

	_, err = o.BuildBorrowCall(model.FlashloanQuote{Lender: "dydx", Token: weth, Amount: ether(1)}, receiver, nil)
	assert.ErrorIs(t, err, model.ErrInvalidParameters)
}
