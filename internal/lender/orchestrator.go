package lender

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"jitscope/internal/model"
)

// TokenLookup resolves cached token metadata without I/O.
type TokenLookup interface {
	Lookup(addr common.Address) (model.Token, bool)
}

// Config bounds orchestrator selections.
type Config struct {
	ChainID uint64
	// NotionalCapUSD overrides the per-chain default when positive.
	NotionalCapUSD decimal.Decimal
}

// Selection is the structured outcome of SelectLender.
type Selection struct {
	OK     bool                 `json:"ok"`
	Quote  model.FlashloanQuote `json:"quote"`
	Reason string               `json:"reason,omitempty"`
	Err    error                `json:"-"`
}

// Orchestrator picks a flash loan venue by fixed precedence: zero-fee first.
type Orchestrator struct {
	zeroFee     LiquiditySource
	feeCharging LiquiditySource
	tokens      TokenLookup
	capUSD      decimal.Decimal
	logger      *zap.Logger
}

func NewOrchestrator(zeroFee, feeCharging LiquiditySource, tokens TokenLookup, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	capUSD := cfg.NotionalCapUSD
	if !capUSD.IsPositive() {
		capUSD = DefaultNotionalCap(cfg.ChainID)
	}
	return &Orchestrator{
		zeroFee:     zeroFee,
		feeCharging: feeCharging,
		tokens:      tokens,
		capUSD:      capUSD,
		logger:      logger,
	}
}

// NotionalCap returns the USD cap in force.
func (o *Orchestrator) NotionalCap() decimal.Decimal {
	return o.capUSD
}

// SelectLender never returns a Go error; failures are reported in the Selection.
func (o *Orchestrator) SelectLender(ctx context.Context, token common.Address, amount *big.Int) Selection {
	quote, err := o.ValidateLoan(ctx, token, amount)
	if err != nil {
		return Selection{Reason: err.Error(), Err: err}
	}
	return Selection{OK: true, Quote: quote}
}

// ValidateLoan applies the cap check and then queries venues in precedence order.
func (o *Orchestrator) ValidateLoan(ctx context.Context, token common.Address, amount *big.Int) (model.FlashloanQuote, error) {
	if token == (common.Address{}) {
		return model.FlashloanQuote{}, fmt.Errorf("zero token address: %w", model.ErrInvalidParameters)
	}
	if amount == nil || amount.Sign() <= 0 {
		return model.FlashloanQuote{}, fmt.Errorf("borrow amount must be positive: %w", model.ErrInvalidParameters)
	}

	meta := o.tokenMeta(token)
	notional := NotionalUSD(meta, amount)
	if notional.GreaterThan(o.capUSD) {
		return model.FlashloanQuote{}, fmt.Errorf("%w: $%s > $%s", model.ErrNotionalCapExceeded, notional.StringFixed(2), o.capUSD.StringFixed(2))
	}

	var errs []error
	for _, source := range []LiquiditySource{o.zeroFee, o.feeCharging} {
		if source == nil {
			continue
		}
		available, err := source.MaxAvailable(ctx, token)
		if err != nil {
			o.logger.Warn("lender availability read failed",
				zap.String("lender", string(source.Lender())),
				zap.String("token", token.Hex()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", source.Lender(), err))
			continue
		}
		if available.Cmp(amount) < 0 {
			o.logger.Debug("lender insufficient",
				zap.String("lender", string(source.Lender())),
				zap.String("available", available.String()),
				zap.String("amount", amount.String()),
			)
			continue
		}
		return model.FlashloanQuote{
			Lender:       source.Lender(),
			Token:        token,
			Amount:       new(big.Int).Set(amount),
			Fee:          source.QuoteFee(token, amount),
			PoolAddress:  source.Address(),
			MaxAvailable: available,
		}, nil
	}

	err := fmt.Errorf("%w for %s %s", model.ErrNoLiquidityAvailable, amount.String(), symbolOrAddress(meta))
	if len(errs) > 0 {
		err = fmt.Errorf("%w: %w", err, errors.Join(errs...))
	}
	return model.FlashloanQuote{}, err
}

// BuildBorrowCall encodes the borrow for a quote returned by ValidateLoan.
func (o *Orchestrator) BuildBorrowCall(quote model.FlashloanQuote, receiver common.Address, payload []byte) (model.BorrowCall, error) {
	for _, source := range []LiquiditySource{o.zeroFee, o.feeCharging} {
		if source != nil && source.Lender() == quote.Lender {
			return source.BuildBorrowCall(quote.Token, quote.Amount, receiver, payload)
		}
	}
	return model.BorrowCall{}, fmt.Errorf("no source for lender %q: %w", quote.Lender, model.ErrInvalidParameters)
}

func (o *Orchestrator) tokenMeta(token common.Address) model.Token {
	if o.tokens != nil {
		if meta, ok := o.tokens.Lookup(token); ok {
			return meta
		}
	}
	return model.Token{Address: token, Decimals: 18}
}

func symbolOrAddress(t model.Token) string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// DefaultNotionalCap is the per-chain USD cap.
func DefaultNotionalCap(chainID uint64) decimal.Decimal {
	switch chainID {
	case 1:
		return decimal.NewFromInt(10_000_000)
	case 10, 8453, 42161:
		return decimal.NewFromInt(5_000_000)
	default:
		return decimal.NewFromInt(1_000_000)
	}
}

// Bucket is the coarse price class used by the cap check.
type Bucket string

const (
	BucketNative Bucket = "native"
	BucketStable Bucket = "stable"
	BucketOther  Bucket = "other"
)

var nativeSymbols = map[string]struct{}{
	"ETH": {}, "WETH": {}, "MATIC": {}, "WMATIC": {}, "POL": {}, "BNB": {}, "WBNB": {}, "AVAX": {}, "WAVAX": {},
}

var stableSymbols = map[string]struct{}{
	"USDC": {}, "USDC.E": {}, "USDBC": {}, "USDT": {}, "DAI": {}, "FRAX": {}, "LUSD": {}, "TUSD": {}, "USDE": {}, "GHO": {},
}

// Classify buckets a token symbol.
func Classify(symbol string) Bucket {
	s := strings.ToUpper(symbol)
	if _, ok := nativeSymbols[s]; ok {
		return BucketNative
	}
	if _, ok := stableSymbols[s]; ok {
		return BucketStable
	}
	return BucketOther
}

// BucketPrice is the USD price assumed for a bucket. Unknown tokens price like the
// native asset so the cap errs toward rejecting.
func BucketPrice(b Bucket) decimal.Decimal {
	if b == BucketStable {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(2000)
}

// NotionalUSD estimates the USD value of amount base units of token.
func NotionalUSD(token model.Token, amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	units := decimal.NewFromBigInt(amount, -int32(token.Decimals))
	return units.Mul(BucketPrice(Classify(token.Symbol)))
}
