package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jitscope/internal/chain"
	"jitscope/internal/config"
	"jitscope/internal/dex"
	"jitscope/internal/gas"
	"jitscope/internal/lender"
	"jitscope/internal/model"
	"jitscope/internal/oracle"
	"jitscope/internal/simulate"
)

// engine owns every component one command needs.
type engine struct {
	cfg          config.Config
	client       *chain.Client
	tokens       *dex.TokenRegistry
	orchestrator *lender.Orchestrator
	fast         *simulate.FastEstimator
	preflight    *simulate.Preflight
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newEngine wires the components. Without an RPC URL only stub lenders and seeded
// tokens are available, which is enough for select-lender.
func newEngine(ctx context.Context, cfg config.Config, logger *zap.Logger, requireRPC bool) (*engine, error) {
	e := &engine{cfg: cfg}

	var caller chain.Caller
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		chainID, err := client.GetChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("chain id: %w", err)
		}
		if chainID.Uint64() != cfg.ChainID {
			logger.Warn("configured chain id differs from rpc",
				zap.Uint64("configured", cfg.ChainID),
				zap.Uint64("rpc", chainID.Uint64()),
			)
		}
		e.client = client
		caller = client
	} else if requireRPC {
		return nil, fmt.Errorf("rpc url is required")
	}

	e.tokens = dex.NewTokenRegistry(caller, cfg.Tokens, logger.Named("tokens"))

	zeroFee, feeCharging, err := lenderSources(cfg, caller)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.orchestrator = lender.NewOrchestrator(zeroFee, feeCharging, e.tokens, lender.Config{
		ChainID:        cfg.ChainID,
		NotionalCapUSD: cfg.NotionalCapUSD,
	}, logger.Named("lender"))
	logger.Info("lender orchestrator ready",
		zap.String("lender_mode", cfg.LenderMode),
		zap.String("notional_cap_usd", e.orchestrator.NotionalCap().String()),
	)

	if caller == nil {
		return e, nil
	}

	pools := dex.NewPoolStateProvider(caller, dex.PoolStateConfig{
		CacheTTL:     cfg.PoolCacheTTL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger.Named("pools"))
	prices := oracle.NewChainlink(caller, oracle.ChainlinkConfig{
		Feeds:  cfg.OracleFeeds,
		MaxAge: cfg.OracleMaxAge,
	}, logger.Named("oracle"))
	gasEstimator := gas.NewChainEstimator(e.client, logger.Named("gas"))

	simCfg := simulate.Config{
		RangeWidth:        cfg.RangeWidth,
		LiquidityFraction: cfg.LiquidityFraction,
		MaxLiquidityShare: cfg.MaxLiquidityShare,
		MaxGasPrice:       gas.Gwei(cfg.MaxGasPriceGwei),
		MinProfitUSD:      cfg.MinProfitUSD,
		TargetNotionalUSD: cfg.TargetNotionalUSD,
		Concurrency:       cfg.Concurrency,
		Timeout:           cfg.Timeout,
		Receiver:          cfg.Receiver,
	}
	e.fast = simulate.NewFastEstimator(pools, e.tokens, prices, gasEstimator, simCfg, logger.Named("fast"))
	e.preflight = simulate.NewPreflight(pools, e.tokens, e.orchestrator, gasEstimator, simCfg, logger.Named("preflight"))
	return e, nil
}

func lenderSources(cfg config.Config, caller chain.Caller) (lender.LiquiditySource, lender.LiquiditySource, error) {
	if cfg.LenderMode == config.LenderModeStub {
		available := cfg.StubAvailable.BigInt()
		return lender.NewStubSource(model.LenderBalancer, cfg.BalancerVault, available, nil),
			lender.NewStubSource(model.LenderAave, cfg.AavePool, new(big.Int).Set(available), nil),
			nil
	}
	if caller == nil {
		return nil, nil, fmt.Errorf("lender-mode %q requires an rpc url", cfg.LenderMode)
	}
	return lender.NewBalancerSource(caller, cfg.BalancerVault), lender.NewAaveSource(caller, cfg.AavePool), nil
}

func (e *engine) Close() {
	if e.client != nil {
		e.client.Close()
	}
}
