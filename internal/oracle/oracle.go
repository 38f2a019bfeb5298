// Package oracle resolves USD prices for token symbols.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"jitscope/internal/chain"
	"jitscope/internal/model"
)

const (
	SourceChainlink = "chainlink"
	SourceStatic    = "static"

	defaultMaxAge = time.Hour
)

// PriceOracle returns a USD price for a token symbol. It never fails; callers inspect
// Confidence to tell live prices from fallbacks.
type PriceOracle interface {
	UsdPrice(ctx context.Context, symbol string) model.PriceQuote
}

var staticPrices = map[string]decimal.Decimal{
	"ETH":  decimal.NewFromInt(2000),
	"WETH": decimal.NewFromInt(2000),
	"BTC":  decimal.NewFromInt(30000),
	"WBTC": decimal.NewFromInt(30000),
	"USDC": decimal.NewFromInt(1),
	"USDT": decimal.NewFromInt(1),
	"DAI":  decimal.NewFromInt(1),
}

// StaticPrice returns the fallback table price for symbol; unknown symbols price at 1.
func StaticPrice(symbol string) decimal.Decimal {
	if price, ok := staticPrices[strings.ToUpper(symbol)]; ok {
		return price
	}
	return decimal.NewFromInt(1)
}

// Static serves the fallback table only.
type Static struct{}

func (Static) UsdPrice(_ context.Context, symbol string) model.PriceQuote {
	return model.PriceQuote{
		Price:      StaticPrice(symbol),
		Confidence: model.ConfidenceLow,
		Source:     SourceStatic,
	}
}

// ChainlinkConfig maps upper-case symbols to aggregator addresses.
type ChainlinkConfig struct {
	Feeds  map[string]common.Address
	MaxAge time.Duration
}

type feedMeta struct {
	decimals int32
}

// Chainlink reads aggregator latestRoundData and falls back to the static table.
type Chainlink struct {
	caller chain.Caller
	feeds  map[string]common.Address
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	meta map[common.Address]feedMeta
}

func NewChainlink(caller chain.Caller, cfg ChainlinkConfig, logger *zap.Logger) *Chainlink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultMaxAge
	}
	feeds := make(map[string]common.Address, len(cfg.Feeds))
	for symbol, addr := range cfg.Feeds {
		feeds[strings.ToUpper(symbol)] = addr
	}
	return &Chainlink{
		caller: caller,
		feeds:  feeds,
		maxAge: cfg.MaxAge,
		logger: logger,
		now:    time.Now,
		meta:   make(map[common.Address]feedMeta),
	}
}

func (c *Chainlink) UsdPrice(ctx context.Context, symbol string) model.PriceQuote {
	feed, ok := c.feeds[strings.ToUpper(symbol)]
	if !ok {
		return Static{}.UsdPrice(ctx, symbol)
	}
	price, err := c.read(ctx, feed)
	if err != nil {
		c.logger.Warn("price feed unavailable, using static price",
			zap.String("symbol", symbol),
			zap.String("feed", feed.Hex()),
			zap.Error(err),
		)
		return Static{}.UsdPrice(ctx, symbol)
	}
	return model.PriceQuote{Price: price, Confidence: model.ConfidenceHigh, Source: SourceChainlink}
}

var errStale = errors.New("stale round")

func (c *Chainlink) read(ctx context.Context, feed common.Address) (decimal.Decimal, error) {
	parsed, err := AggregatorABI()
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse aggregator abi: %w", err)
	}
	meta, err := c.feedMeta(ctx, feed)
	if err != nil {
		return decimal.Decimal{}, err
	}

	data, err := parsed.Pack("latestRoundData")
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("pack latestRoundData: %w", err)
	}
	resp, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("call latestRoundData: %w", err)
	}
	values, err := parsed.Unpack("latestRoundData", resp)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	if len(values) < 4 {
		return decimal.Decimal{}, fmt.Errorf("unpack latestRoundData: short result")
	}
	answer, ok := values[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("invalid answer %v", values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok || !updatedAt.IsInt64() {
		return decimal.Decimal{}, fmt.Errorf("invalid updatedAt %v", values[3])
	}
	age := c.now().Sub(time.Unix(updatedAt.Int64(), 0))
	if age > c.maxAge {
		return decimal.Decimal{}, fmt.Errorf("%w: age %s", errStale, age)
	}
	return decimal.NewFromBigInt(answer, -meta.decimals), nil
}

func (c *Chainlink) feedMeta(ctx context.Context, feed common.Address) (feedMeta, error) {
	c.mu.RLock()
	meta, ok := c.meta[feed]
	c.mu.RUnlock()
	if ok {
		return meta, nil
	}

	parsed, err := AggregatorABI()
	if err != nil {
		return feedMeta{}, err
	}
	data, err := parsed.Pack("decimals")
	if err != nil {
		return feedMeta{}, fmt.Errorf("pack decimals: %w", err)
	}
	resp, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return feedMeta{}, fmt.Errorf("call decimals: %w", err)
	}
	values, err := parsed.Unpack("decimals", resp)
	if err != nil || len(values) == 0 {
		return feedMeta{}, fmt.Errorf("unpack decimals: %v", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return feedMeta{}, fmt.Errorf("unsupported decimals type %T", values[0])
	}

	meta = feedMeta{decimals: int32(decimals)}
	c.mu.Lock()
	c.meta[feed] = meta
	c.mu.Unlock()
	return meta, nil
}
