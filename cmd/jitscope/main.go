package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "jitscope",
		Short:        "Just-in-time liquidity profitability engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	estimateCmd := &cobra.Command{
		Use:   "estimate",
		Short: "Fast profitability estimate for one pending swap",
		RunE:  runEstimate,
	}
	addEngineFlags(estimateCmd.Flags())
	addCandidateFlags(estimateCmd.Flags())
	root.AddCommand(estimateCmd)

	preflightCmd := &cobra.Command{
		Use:   "preflight",
		Short: "Dry-run borrow, mint, swap, burn and repay for one pending swap",
		RunE:  runPreflight,
	}
	addEngineFlags(preflightCmd.Flags())
	addCandidateFlags(preflightCmd.Flags())
	root.AddCommand(preflightCmd)

	selectCmd := &cobra.Command{
		Use:   "select-lender",
		Short: "Pick the flash loan venue for a token and amount",
		RunE:  runSelectLender,
	}
	addEngineFlags(selectCmd.Flags())
	selectCmd.Flags().String("token", "", "token address to borrow")
	selectCmd.Flags().String("amount", "", "amount in token base units")
	root.AddCommand(selectCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Estimate a JSONL file of candidates and preflight the profitable ones",
		RunE:  runScan,
	}
	addEngineFlags(scanCmd.Flags())
	scanCmd.Flags().String("in", "", "input candidates JSONL")
	scanCmd.Flags().String("out", "./data/results.jsonl", "output results JSONL path")
	scanCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for results")
	scanCmd.Flags().String("redis-addr", "", "optional Redis address; confirmed opportunities are appended to redis-stream")
	scanCmd.Flags().String("redis-stream", "jitscope:opportunities", "Redis stream for confirmed opportunities")
	scanCmd.Flags().Bool("resume", false, "skip input lines already processed")
	scanCmd.Flags().String("checkpoint", "./data/scan_checkpoint.json", "scan progress file used when pg-dsn is unset")
	scanCmd.Flags().String("metrics-addr", "", "serve /metrics and /healthz on this address")
	scanCmd.Flags().Int("concurrency", 5, "concurrent fast estimates")
	scanCmd.Flags().Duration("timeout", 2*time.Second, "per-candidate timeout")
	root.AddCommand(scanCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a results JSONL written by scan",
		RunE:  runReport,
	}
	reportCmd.Flags().String("out", "./data/results.jsonl", "results JSONL path")
	reportCmd.Flags().Int("top", 5, "number of best confirmed opportunities to list")
	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.Uint64("chain-id", 1, "chain id used for per-chain defaults")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Duration("pool-cache-ttl", 2*time.Second, "pool state cache TTL for latest reads")
	flags.Int("max-retries", 3, "maximum retry attempts for pool reads")
	flags.Duration("retry-backoff", 200*time.Millisecond, "initial retry backoff")
	flags.Int32("range-width", 1200, "position width in ticks around the current tick")
	flags.String("liquidity-fraction", "0.1", "share of the trade input sized into the position")
	flags.String("max-liquidity-share", "0.1", "maximum position liquidity as a share of pool liquidity")
	flags.Int64("max-gas-price-gwei", 500, "gas price ceiling")
	flags.String("min-profit-usd", "0", "minimum net USD profit")
	flags.String("notional-cap-usd", "0", "borrow notional cap in USD, 0 uses the chain default")
	flags.String("target-notional-usd", "0", "size preflight positions to this USD value when positive")
	flags.String("lender-mode", "live", "lender adapters: live or stub")
	flags.String("stub-available", "1000000000000000000000000", "stub lender availability in base units")
	flags.String("oracle-feeds", "", "Chainlink feeds (comma-separated SYMBOL=address)")
	flags.String("tokens", "", "token metadata seeds (comma-separated address=SYMBOL:decimals)")
	flags.String("receiver", "", "contract receiving borrowed funds in encoded borrow calls")
}

func addCandidateFlags(flags *pflag.FlagSet) {
	flags.String("pool", "", "pool address")
	flags.String("amount-in", "", "swap input amount in base units")
	flags.Bool("zero-for-one", true, "swap direction token0 -> token1")
	flags.String("tick-lower", "", "optional lower tick of the position")
	flags.String("tick-upper", "", "optional upper tick of the position")
	flags.String("liquidity", "", "optional position liquidity")
	flags.String("gas-price", "", "optional gas price in wei")
	flags.Uint64("block", 0, "pin pool reads to this block, 0 means latest")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(w io.Writer, value interface{}) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
