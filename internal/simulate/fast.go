package simulate

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jitscope/internal/gas"
	"jitscope/internal/model"
	"jitscope/internal/oracle"
)

// FastEstimator prices a candidate from pool state alone, without stepping through
// the borrow-to-repay sequence.
type FastEstimator struct {
	pools  PoolStateProvider
	tokens TokenResolver
	prices oracle.PriceOracle
	gas    gas.Estimator
	cfg    Config
	logger *zap.Logger
}

func NewFastEstimator(pools PoolStateProvider, tokens TokenResolver, prices oracle.PriceOracle, gasEstimator gas.Estimator, cfg Config, logger *zap.Logger) *FastEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FastEstimator{
		pools:  pools,
		tokens: tokens,
		prices: prices,
		gas:    gasEstimator,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Estimate never returns an error; failures come back as Success=false with a Reason.
func (e *FastEstimator) Estimate(ctx context.Context, params model.SimulationParams) model.FastResult {
	res, err := e.estimate(ctx, params)
	if err != nil {
		e.logger.Debug("fast estimate failed", zap.String("pool", params.Pool.Hex()), zap.Error(err))
		return model.FastResult{
			Pool:         params.Pool,
			NetProfit:    new(big.Int),
			NetProfitUSD: decimal.Zero,
			Reason:       err.Error(),
			Err:          err,
		}
	}
	return res
}

func (e *FastEstimator) estimate(ctx context.Context, params model.SimulationParams) (model.FastResult, error) {
	if err := validateParams(params); err != nil {
		return model.FastResult{}, err
	}
	pool, err := e.pools.PoolState(ctx, params.Pool, params.BlockNumber)
	if err != nil {
		return model.FastResult{}, fmt.Errorf("pool state: %w", err)
	}

	r, _, err := positionRange(pool, params.Range, e.cfg.RangeWidth)
	if err != nil {
		return model.FastResult{}, fmt.Errorf("tick range: %w", err)
	}
	liquidity := params.Liquidity
	if liquidity == nil {
		liquidity, err = fractionLiquidity(pool, r, params.AmountIn, params.ZeroForOne, e.cfg.LiquidityFraction)
		if err != nil {
			return model.FastResult{}, fmt.Errorf("position liquidity: %w", err)
		}
	}

	tokenIn, err := e.tokens.Token(ctx, pool.TokenIn(params.ZeroForOne))
	if err != nil {
		return model.FastResult{}, fmt.Errorf("token in: %w", err)
	}
	quote, err := quoteGas(ctx, e.gas, params.GasPrice)
	if err != nil {
		return model.FastResult{}, err
	}

	fees := feeOnAmount(params.AmountIn, pool.Fee)
	gasUnits := quote.Costs.FullCycle()
	gasCost := gas.Cost(gasUnits, quote.GasPrice)

	priceIn := e.prices.UsdPrice(ctx, tokenIn.Symbol)
	priceNative := e.prices.UsdPrice(ctx, nativeSymbol)
	feesUSD := toUSD(fees, int32(tokenIn.Decimals), priceIn.Price)
	gasUSD := toUSD(gasCost, weiDecimals, priceNative.Price)
	netUSD := feesUSD.Sub(gasUSD)
	gasInToken := fromUSD(gasUSD, int32(tokenIn.Decimals), priceIn.Price)

	res := model.FastResult{
		Pool:              pool.Address,
		Success:           true,
		Profitable:        netUSD.IsPositive(),
		Range:             r,
		PositionLiquidity: liquidity,
		NetProfit:         new(big.Int).Sub(fees, gasInToken),
		NetProfitUSD:      netUSD,
		Breakdown: model.CostBreakdown{
			FeesEarned:    fees,
			FeesEarnedUSD: feesUSD,
			GasUnits:      gasUnits,
			GasCost:       gasCost,
			GasCostUSD:    gasUSD,
			BorrowFee:     new(big.Int),
			BorrowFeeUSD:  decimal.Zero,
			PriceInRange:  r.Contains(pool.Tick),
		},
	}
	if !res.Profitable {
		res.Reason = "insufficient profit"
	}
	e.logger.Info("fast estimate",
		zap.String("pool", pool.Address.Hex()),
		zap.Stringer("range", r),
		zap.String("fees_usd", feesUSD.StringFixed(4)),
		zap.String("gas_usd", gasUSD.StringFixed(4)),
		zap.String("net_usd", netUSD.StringFixed(4)),
		zap.Bool("profitable", res.Profitable),
		zap.String("price_confidence", string(priceIn.Confidence)),
	)
	return res, nil
}

// EstimateBatch evaluates candidates with bounded concurrency, each under its own
// timeout. Results are keyed by candidate ID.
func (e *FastEstimator) EstimateBatch(ctx context.Context, candidates []model.Candidate) map[string]model.FastResult {
	results := make(map[string]model.FastResult, len(candidates))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
			res := e.Estimate(cctx, c.Params)
			mu.Lock()
			results[c.ID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func validateParams(params model.SimulationParams) error {
	if params.Pool == (common.Address{}) {
		return fmt.Errorf("zero pool address: %w", model.ErrInvalidParameters)
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return fmt.Errorf("amount in must be positive: %w", model.ErrInvalidParameters)
	}
	if params.GasPrice != nil && params.GasPrice.Sign() < 0 {
		return fmt.Errorf("negative gas price: %w", model.ErrInvalidParameters)
	}
	return nil
}

// quoteGas asks the estimator for a quote; an explicit price overrides the
// estimator's and keeps the default unit table if the estimator is unavailable.
func quoteGas(ctx context.Context, estimator gas.Estimator, override *big.Int) (model.GasQuote, error) {
	if estimator == nil && override == nil {
		return model.GasQuote{}, fmt.Errorf("no gas price source: %w", model.ErrInvalidParameters)
	}
	var (
		quote model.GasQuote
		err   error
	)
	if estimator != nil {
		quote, err = estimator.GasQuote(ctx)
	}
	if override != nil {
		if err != nil || estimator == nil {
			quote.Costs = model.DefaultGasCosts()
		}
		quote.GasPrice = new(big.Int).Set(override)
		return quote, nil
	}
	if err != nil {
		return model.GasQuote{}, fmt.Errorf("gas quote: %w", err)
	}
	return quote, nil
}
