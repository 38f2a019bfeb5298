package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"jitscope/internal/lender"
	"jitscope/internal/model"
)

func runEstimate(cmd *cobra.Command, _ []string) error {
	return runSingle(cmd, func(ctx context.Context, e *engine, params model.SimulationParams) interface{} {
		return e.fast.Estimate(ctx, params)
	})
}

func runPreflight(cmd *cobra.Command, _ []string) error {
	return runSingle(cmd, func(ctx context.Context, e *engine, params model.SimulationParams) interface{} {
		return e.preflight.Run(ctx, params)
	})
}

func runSingle(cmd *cobra.Command, run func(context.Context, *engine, model.SimulationParams) interface{}) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params, err := candidateFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return printJSON(cmd.OutOrStdout(), run(ctx, e, params))
}

func runSelectLender(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokenRaw, _ := cmd.Flags().GetString("token")
	if !common.IsHexAddress(tokenRaw) {
		return fmt.Errorf("invalid token address %q", tokenRaw)
	}
	amountRaw, _ := cmd.Flags().GetString("amount")
	amount, err := parseBig("amount", amountRaw)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer e.Close()

	token := common.HexToAddress(tokenRaw)
	if _, err := e.tokens.Token(ctx, token); err != nil {
		logger.Warn("token metadata unavailable, cap check assumes 18 decimals", zap.Error(err))
	}

	selection := e.orchestrator.SelectLender(ctx, token, amount)
	out := struct {
		Selection  lender.Selection  `json:"selection"`
		BorrowCall *model.BorrowCall `json:"borrow_call,omitempty"`
	}{Selection: selection}

	if selection.OK && cfg.Receiver != (common.Address{}) {
		call, err := e.orchestrator.BuildBorrowCall(selection.Quote, cfg.Receiver, nil)
		if err != nil {
			return fmt.Errorf("build borrow call: %w", err)
		}
		out.BorrowCall = &call
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func candidateFromFlags(flags *pflag.FlagSet) (model.SimulationParams, error) {
	poolRaw, _ := flags.GetString("pool")
	if !common.IsHexAddress(poolRaw) {
		return model.SimulationParams{}, fmt.Errorf("invalid pool address %q", poolRaw)
	}
	amountRaw, _ := flags.GetString("amount-in")
	amountIn, err := parseBig("amount-in", amountRaw)
	if err != nil {
		return model.SimulationParams{}, err
	}
	zeroForOne, _ := flags.GetBool("zero-for-one")

	params := model.SimulationParams{
		Pool:       common.HexToAddress(poolRaw),
		AmountIn:   amountIn,
		ZeroForOne: zeroForOne,
	}

	lowerRaw, _ := flags.GetString("tick-lower")
	upperRaw, _ := flags.GetString("tick-upper")
	if lowerRaw != "" || upperRaw != "" {
		lower, err := strconv.ParseInt(lowerRaw, 10, 32)
		if err != nil {
			return model.SimulationParams{}, fmt.Errorf("parse tick-lower: %w", err)
		}
		upper, err := strconv.ParseInt(upperRaw, 10, 32)
		if err != nil {
			return model.SimulationParams{}, fmt.Errorf("parse tick-upper: %w", err)
		}
		params.Range = &model.TickRange{Lower: int32(lower), Upper: int32(upper)}
	}

	if raw, _ := flags.GetString("liquidity"); raw != "" {
		liquidity, err := uint256.FromDecimal(raw)
		if err != nil {
			return model.SimulationParams{}, fmt.Errorf("parse liquidity: %w", err)
		}
		params.Liquidity = liquidity
	}
	if raw, _ := flags.GetString("gas-price"); raw != "" {
		price, err := parseBig("gas-price", raw)
		if err != nil {
			return model.SimulationParams{}, err
		}
		params.GasPrice = price
	}
	if block, _ := flags.GetUint64("block"); block > 0 {
		params.BlockNumber = new(big.Int).SetUint64(block)
	}
	return params, nil
}

func parseBig(name, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}
