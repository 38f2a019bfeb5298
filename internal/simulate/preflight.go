package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"jitscope/internal/gas"
	"jitscope/internal/model"
	"jitscope/internal/ticks"
)

// swapFeePips is the fee tier assumed for fee capture during the swap step.
const swapFeePips = 3000

// Preflight dry-runs borrow, mint, swap, burn and repay against a pool snapshot.
// USD conversion uses BucketPrice rather than the oracle.
type Preflight struct {
	pools  PoolStateProvider
	tokens TokenResolver
	loans  LoanValidator
	gas    gas.Estimator
	cfg    Config
	logger *zap.Logger
}

func NewPreflight(pools PoolStateProvider, tokens TokenResolver, loans LoanValidator, gasEstimator gas.Estimator, cfg Config, logger *zap.Logger) *Preflight {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preflight{
		pools:  pools,
		tokens: tokens,
		loans:  loans,
		gas:    gasEstimator,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// gateError marks which gate stopped the run.
type gateError struct {
	gate string
	err  error
}

func (e *gateError) Error() string {
	return fmt.Sprintf("%s validation failed: %v", e.gate, e.err)
}

func (e *gateError) Unwrap() error { return e.err }

// run carries state between steps.
type run struct {
	params      model.SimulationParams
	pool        model.PoolState
	tokenIn     model.Token
	borrowToken model.Token
	position    model.Position
	quote       model.FlashloanQuote
	gasQuote    model.GasQuote
	feesEarned  *big.Int
	inRange     bool
	res         model.PreflightResult
}

// Run never returns an error; a failing gate or step yields Success=false with the
// triggering message in RevertReason.
func (p *Preflight) Run(ctx context.Context, params model.SimulationParams) model.PreflightResult {
	st := &run{
		params: params,
		res: model.PreflightResult{
			Pool:         params.Pool,
			NetProfit:    new(big.Int),
			NetProfitUSD: decimal.Zero,
		},
	}
	if err := p.execute(ctx, st); err != nil {
		st.res.Success = false
		st.res.Profitable = false
		st.res.RevertReason = err.Error()
		st.res.Err = err
		p.logger.Info("preflight failed",
			zap.String("pool", params.Pool.Hex()),
			zap.String("reason", st.res.RevertReason),
		)
		return st.res
	}
	p.logger.Info("preflight complete",
		zap.String("pool", params.Pool.Hex()),
		zap.Stringer("range", st.res.Range),
		zap.Uint64("gas_used", st.res.GasUsed),
		zap.String("net_usd", st.res.NetProfitUSD.StringFixed(4)),
		zap.Bool("profitable", st.res.Profitable),
	)
	return st.res
}

func (p *Preflight) execute(ctx context.Context, st *run) error {
	if err := validateParams(st.params); err != nil {
		return &gateError{gate: "pool", err: err}
	}
	if err := p.validatePool(ctx, st); err != nil {
		return &gateError{gate: "pool", err: err}
	}
	if err := p.sizePosition(ctx, st); err != nil {
		return &gateError{gate: "position", err: err}
	}
	if err := p.validateLoan(ctx, st); err != nil {
		return err
	}
	if err := p.validateSizing(st); err != nil {
		return &gateError{gate: "liquidity sizing", err: err}
	}
	if err := p.validateGas(ctx, st); err != nil {
		return &gateError{gate: "gas", err: err}
	}

	steps := []struct {
		name string
		fn   func(context.Context, *run) error
	}{
		{"borrow", p.stepBorrow},
		{"add liquidity", p.stepAddLiquidity},
		{"swap", p.stepSwap},
		{"remove liquidity", p.stepRemoveLiquidity},
		{"repay", p.stepRepay},
	}
	for _, step := range steps {
		if err := step.fn(ctx, st); err != nil {
			return fmt.Errorf("%s step: %w", step.name, err)
		}
		p.logger.Debug("preflight step",
			zap.String("step", step.name),
			zap.Uint64("gas_used", st.res.GasUsed),
		)
	}

	p.settle(st)
	return nil
}

func (p *Preflight) validatePool(ctx context.Context, st *run) error {
	pool, err := p.pools.PoolState(ctx, st.params.Pool, st.params.BlockNumber)
	if err != nil {
		return err
	}
	switch {
	case !pool.Unlocked:
		return fmt.Errorf("pool %s is locked: %w", pool.Address.Hex(), model.ErrInvalidParameters)
	case pool.Liquidity == nil || pool.Liquidity.IsZero():
		return fmt.Errorf("pool %s has no liquidity: %w", pool.Address.Hex(), model.ErrInvalidParameters)
	case pool.TickSpacing <= 0:
		return fmt.Errorf("pool %s tick spacing %d: %w", pool.Address.Hex(), pool.TickSpacing, model.ErrInvalidParameters)
	case pool.SqrtPriceX96 == nil:
		return fmt.Errorf("pool %s has no price: %w", pool.Address.Hex(), model.ErrInvalidParameters)
	}
	st.pool = pool
	st.res.Pool = pool.Address
	st.res.Validations.Pool = true
	return nil
}

// sizePosition picks the range and liquidity and derives the borrow from them.
func (p *Preflight) sizePosition(ctx context.Context, st *run) error {
	r, adjusted, err := positionRange(st.pool, st.params.Range, p.cfg.RangeWidth)
	if err != nil {
		return fmt.Errorf("tick range: %w", err)
	}
	st.res.Range = r
	st.res.RangeAdjusted = adjusted

	token0, err := p.tokens.Token(ctx, st.pool.Token0)
	if err != nil {
		return fmt.Errorf("token0: %w", err)
	}
	token1, err := p.tokens.Token(ctx, st.pool.Token1)
	if err != nil {
		return fmt.Errorf("token1: %w", err)
	}
	st.tokenIn, st.borrowToken = token0, token1
	if !st.params.ZeroForOne {
		st.tokenIn, st.borrowToken = token1, token0
	}

	liquidity := st.params.Liquidity
	if liquidity == nil {
		liquidity, err = p.computeLiquidity(st, r, token0, token1)
		if err != nil {
			return fmt.Errorf("position liquidity: %w", err)
		}
	}

	sqrtPrice := st.pool.SqrtPriceX96
	position, err := ticks.PositionAt(sqrtPrice, r, liquidity)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	st.position = position
	st.res.Position = &position
	return nil
}

func (p *Preflight) computeLiquidity(st *run, r model.TickRange, token0, token1 model.Token) (*uint256.Int, error) {
	var (
		liquidity *uint256.Int
		err       error
	)
	if p.cfg.TargetNotionalUSD.IsPositive() {
		sqrtA, sqrtB, berr := rangeBounds(r)
		if berr != nil {
			return nil, berr
		}
		liquidity, err = ticks.ComputeOptimalLiquidity(
			st.pool.SqrtPriceX96, sqrtA, sqrtB,
			p.cfg.TargetNotionalUSD,
			token0, token1,
			BucketPrice(token0.Symbol), BucketPrice(token1.Symbol),
		)
	} else {
		liquidity, err = fractionLiquidity(st.pool, r, st.params.AmountIn, st.params.ZeroForOne, p.cfg.LiquidityFraction)
	}
	if err != nil {
		return nil, err
	}

	limit := maxPositionLiquidity(st.pool.Liquidity, p.cfg.MaxLiquidityShare)
	if liquidity.Gt(limit) {
		p.logger.Debug("position liquidity capped",
			zap.String("computed", liquidity.Dec()),
			zap.String("limit", limit.Dec()),
		)
		liquidity = limit
	}
	return liquidity, nil
}

func (p *Preflight) validateLoan(ctx context.Context, st *run) error {
	amount0, amount1 := st.position.Amount0, st.position.Amount1
	needIn, needOther := amount0, amount1
	token0IsIn := st.params.ZeroForOne
	if !token0IsIn {
		needIn, needOther = amount1, amount0
	}

	var amount *uint256.Int
	switch {
	case !needIn.IsZero():
		amount = needIn
		st.borrowToken = st.tokenIn
	case !needOther.IsZero():
		amount = needOther
	default:
		return &gateError{gate: "loan", err: fmt.Errorf("position needs no tokens: %w", model.ErrInvalidParameters)}
	}

	quote, err := p.loans.ValidateLoan(ctx, st.borrowToken.Address, amount.ToBig())
	if err != nil {
		return err
	}
	st.quote = quote
	st.res.BorrowToken = st.borrowToken
	st.res.Quote = &quote
	st.res.Validations.Loan = true
	return nil
}

func (p *Preflight) validateSizing(st *run) error {
	limit := maxPositionLiquidity(st.pool.Liquidity, p.cfg.MaxLiquidityShare)
	if st.position.Liquidity.Gt(limit) {
		return fmt.Errorf("position liquidity %s exceeds %s of pool liquidity %s: %w",
			st.position.Liquidity.Dec(), p.cfg.MaxLiquidityShare.String(), st.pool.Liquidity.Dec(), model.ErrInvalidParameters)
	}
	st.res.Validations.LiquiditySizing = true
	return nil
}

func (p *Preflight) validateGas(ctx context.Context, st *run) error {
	quote, err := quoteGas(ctx, p.gas, st.params.GasPrice)
	if err != nil {
		return err
	}
	if quote.GasPrice.Cmp(p.cfg.MaxGasPrice) > 0 {
		return fmt.Errorf("gas price %s exceeds ceiling %s: %w", quote.GasPrice, p.cfg.MaxGasPrice, model.ErrInvalidParameters)
	}
	st.gasQuote = quote
	st.res.Validations.Gas = true
	return nil
}

func (p *Preflight) stepBorrow(_ context.Context, st *run) error {
	call, err := p.loans.BuildBorrowCall(st.quote, p.cfg.Receiver, nil)
	if err != nil {
		return err
	}
	st.res.BorrowCall = &call
	st.res.GasUsed += st.gasQuote.Costs.Borrow
	st.res.Steps.Borrow = true
	return nil
}

func (p *Preflight) stepAddLiquidity(_ context.Context, st *run) error {
	if err := ticks.ValidateTickRange(st.res.Range, st.pool.TickSpacing); err != nil {
		return err
	}
	st.res.GasUsed += st.gasQuote.Costs.AddLiquidity
	st.res.Steps.AddLiquidity = true
	return nil
}

func (p *Preflight) stepSwap(_ context.Context, st *run) error {
	st.feesEarned = feeOnAmount(st.params.AmountIn, swapFeePips)
	st.inRange = st.res.Range.Contains(st.pool.Tick)
	st.res.GasUsed += st.gasQuote.Costs.Swap
	st.res.Steps.Swap = true
	return nil
}

func (p *Preflight) stepRemoveLiquidity(_ context.Context, st *run) error {
	st.res.GasUsed += st.gasQuote.Costs.RemoveLiquidity
	st.res.Steps.RemoveLiquidity = true
	return nil
}

func (p *Preflight) stepRepay(_ context.Context, st *run) error {
	if st.quote.Amount == nil || st.quote.Amount.Sign() <= 0 {
		return errors.New("nothing to repay")
	}
	st.res.GasUsed += st.gasQuote.Costs.Repay
	st.res.Steps.Repay = true
	return nil
}

// settle computes profit in the trade token and in USD.
func (p *Preflight) settle(st *run) {
	inPrice := BucketPrice(st.tokenIn.Symbol)
	borrowPrice := BucketPrice(st.borrowToken.Symbol)
	inDecimals := int32(st.tokenIn.Decimals)

	borrowFee := st.quote.Fee
	if borrowFee == nil {
		borrowFee = new(big.Int)
	}
	gasCost := gas.Cost(st.res.GasUsed, st.gasQuote.GasPrice)

	feesUSD := toUSD(st.feesEarned, inDecimals, inPrice)
	borrowFeeUSD := toUSD(borrowFee, int32(st.borrowToken.Decimals), borrowPrice)
	gasUSD := toUSD(gasCost, weiDecimals, BucketPrice(nativeSymbol))
	netUSD := feesUSD.Sub(borrowFeeUSD).Sub(gasUSD)

	net := new(big.Int).Set(st.feesEarned)
	net.Sub(net, fromUSD(borrowFeeUSD, inDecimals, inPrice))
	net.Sub(net, fromUSD(gasUSD, inDecimals, inPrice))

	st.res.Breakdown = model.CostBreakdown{
		FeesEarned:    st.feesEarned,
		FeesEarnedUSD: feesUSD,
		GasUnits:      st.res.GasUsed,
		GasCost:       gasCost,
		GasCostUSD:    gasUSD,
		BorrowFee:     borrowFee,
		BorrowFeeUSD:  borrowFeeUSD,
		PriceInRange:  st.inRange,
	}
	st.res.NetProfit = net
	st.res.NetProfitUSD = netUSD
	st.res.Success = st.res.Steps.Completed()
	st.res.Profitable = st.res.Success && netUSD.GreaterThanOrEqual(p.cfg.MinProfitUSD)
	st.res.Validations.Profitability = st.res.Profitable
}
