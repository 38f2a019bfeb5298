package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jitscope/internal/model"
)

const (
	LenderModeLive = "live"
	LenderModeStub = "stub"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	ChainID      uint64
	LogLevel     string
	PoolCacheTTL time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	RangeWidth        int32
	LiquidityFraction decimal.Decimal
	MaxLiquidityShare decimal.Decimal
	MaxGasPriceGwei   int64
	MinProfitUSD      decimal.Decimal
	NotionalCapUSD    decimal.Decimal
	TargetNotionalUSD decimal.Decimal
	Receiver          common.Address

	LenderMode    string
	BalancerVault common.Address
	AavePool      common.Address
	StubAvailable decimal.Decimal

	OracleFeeds  map[string]common.Address
	OracleMaxAge time.Duration
	Tokens       []model.Token

	Concurrency int
	Timeout     time.Duration
	In          string
	Out         string
	PGDSN       string
	RedisAddr   string
	RedisStream string
	MetricsAddr string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JITSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("log-level", "info")
	v.SetDefault("pool-cache-ttl", 2*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 200*time.Millisecond)
	v.SetDefault("range-width", 1200)
	v.SetDefault("liquidity-fraction", "0.1")
	v.SetDefault("max-liquidity-share", "0.1")
	v.SetDefault("max-gas-price-gwei", int64(500))
	v.SetDefault("min-profit-usd", "0")
	v.SetDefault("notional-cap-usd", "0")
	v.SetDefault("target-notional-usd", "0")
	v.SetDefault("lender-mode", LenderModeLive)
	v.SetDefault("balancer-vault", "0xBA12222222228d8Ba445958a75a0704d566BF2C8")
	v.SetDefault("aave-pool", "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")
	v.SetDefault("stub-available", "1000000000000000000000000")
	v.SetDefault("oracle-max-age", time.Hour)
	v.SetDefault("concurrency", 5)
	v.SetDefault("timeout", 2*time.Second)
	v.SetDefault("out", "./data/results.jsonl")
	v.SetDefault("redis-stream", "jitscope:opportunities")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		ChainID:         v.GetUint64("chain-id"),
		LogLevel:        v.GetString("log-level"),
		PoolCacheTTL:    v.GetDuration("pool-cache-ttl"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		RangeWidth:      v.GetInt32("range-width"),
		MaxGasPriceGwei: v.GetInt64("max-gas-price-gwei"),
		LenderMode:      strings.ToLower(strings.TrimSpace(v.GetString("lender-mode"))),
		OracleMaxAge:    v.GetDuration("oracle-max-age"),
		Concurrency:     v.GetInt("concurrency"),
		Timeout:         v.GetDuration("timeout"),
		In:              v.GetString("in"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisStream:     v.GetString("redis-stream"),
		MetricsAddr:     v.GetString("metrics-addr"),
	}

	var err error
	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"liquidity-fraction", &cfg.LiquidityFraction},
		{"max-liquidity-share", &cfg.MaxLiquidityShare},
		{"min-profit-usd", &cfg.MinProfitUSD},
		{"notional-cap-usd", &cfg.NotionalCapUSD},
		{"target-notional-usd", &cfg.TargetNotionalUSD},
		{"stub-available", &cfg.StubAvailable},
	}
	for _, d := range decimals {
		if *d.dst, err = getDecimal(v, d.key); err != nil {
			return Config{}, err
		}
	}

	addresses := []struct {
		key string
		dst *common.Address
	}{
		{"balancer-vault", &cfg.BalancerVault},
		{"aave-pool", &cfg.AavePool},
		{"receiver", &cfg.Receiver},
	}
	for _, a := range addresses {
		if *a.dst, err = getAddress(v, a.key); err != nil {
			return Config{}, err
		}
	}

	if cfg.OracleFeeds, err = parseFeeds(getStringMap(v, "oracle-feeds")); err != nil {
		return Config{}, err
	}
	if cfg.Tokens, err = parseTokens(getStringMap(v, "tokens")); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	if c.LenderMode != LenderModeLive && c.LenderMode != LenderModeStub {
		return fmt.Errorf("lender-mode must be %q or %q, got %q", LenderModeLive, LenderModeStub, c.LenderMode)
	}
	if c.RangeWidth <= 0 {
		return fmt.Errorf("range-width must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.LiquidityFraction.IsNegative() || c.MaxLiquidityShare.IsNegative() {
		return fmt.Errorf("liquidity-fraction and max-liquidity-share must be non-negative")
	}
	return nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getAddress(v *viper.Viper, key string) (common.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("parse %s: invalid address %q", key, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseFeeds(raw map[string]string) (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(raw))
	for symbol, addr := range raw {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("parse oracle-feeds: invalid address %q for %s", addr, symbol)
		}
		out[strings.ToUpper(symbol)] = common.HexToAddress(addr)
	}
	return out, nil
}

// parseTokens reads address=SYMBOL:decimals entries.
func parseTokens(raw map[string]string) ([]model.Token, error) {
	out := make([]model.Token, 0, len(raw))
	for addr, entry := range raw {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("parse tokens: invalid address %q", addr)
		}
		symbol, decimalsRaw, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("parse tokens: %q must be SYMBOL:decimals", entry)
		}
		decimals, err := strconv.ParseUint(strings.TrimSpace(decimalsRaw), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("parse tokens: decimals for %s: %w", addr, err)
		}
		out = append(out, model.Token{
			Address:  common.HexToAddress(addr),
			Symbol:   strings.TrimSpace(symbol),
			Decimals: uint8(decimals),
		})
	}
	return out, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
