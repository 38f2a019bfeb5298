package dex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"jitscope/internal/chain"
	"jitscope/internal/model"
)

// TokenRegistry resolves ERC20 metadata and caches it for the process lifetime.
type TokenRegistry struct {
	caller chain.Caller
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[common.Address]model.Token
}

// NewTokenRegistry builds a registry pre-seeded with known tokens. caller may be nil
// when only seeded tokens are needed.
func NewTokenRegistry(caller chain.Caller, seeds []model.Token, logger *zap.Logger) *TokenRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &TokenRegistry{
		caller: caller,
		logger: logger,
		cache:  make(map[common.Address]model.Token, len(seeds)),
	}
	for _, t := range seeds {
		r.cache[t.Address] = t
	}
	return r
}

// Token returns metadata for addr, fetching decimals and symbol on first use.
func (r *TokenRegistry) Token(ctx context.Context, addr common.Address) (model.Token, error) {
	r.mu.RLock()
	token, ok := r.cache[addr]
	r.mu.RUnlock()
	if ok {
		return token, nil
	}
	if r.caller == nil {
		return model.Token{}, fmt.Errorf("unknown token %s: %w", addr.Hex(), model.ErrInvalidParameters)
	}

	token, err := r.fetch(ctx, addr)
	if err != nil {
		return model.Token{}, err
	}
	r.mu.Lock()
	r.cache[addr] = token
	r.mu.Unlock()
	return token, nil
}

// Lookup returns cached metadata without touching the chain.
func (r *TokenRegistry) Lookup(addr common.Address) (model.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.cache[addr]
	return token, ok
}

func (r *TokenRegistry) fetch(ctx context.Context, addr common.Address) (model.Token, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return model.Token{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, addr, erc20, "decimals", nil)
	if err != nil {
		return model.Token{}, fmt.Errorf("token %s: %w", addr.Hex(), err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return model.Token{}, fmt.Errorf("token %s decimals: %w", addr.Hex(), err)
	}

	symbol, err := r.fetchSymbol(ctx, addr)
	if err != nil {
		r.logger.Warn("token symbol unavailable", zap.String("token", addr.Hex()), zap.Error(err))
	}
	return model.Token{Address: addr, Symbol: symbol, Decimals: decimals}, nil
}

func (r *TokenRegistry) fetchSymbol(ctx context.Context, addr common.Address) (string, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return "", err
	}
	values, err := callMethod(ctx, r.caller, addr, erc20, "symbol", nil)
	if err == nil {
		if symbol, ok := values[0].(string); ok {
			return strings.TrimSpace(symbol), nil
		}
	}

	legacy, legacyErr := ERC20Bytes32ABI()
	if legacyErr != nil {
		return "", legacyErr
	}
	values, legacyErr = callMethod(ctx, r.caller, addr, legacy, "symbol", nil)
	if legacyErr != nil {
		if err != nil {
			return "", err
		}
		return "", legacyErr
	}
	symbol, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("unsupported symbol type %T", values[0])
	}
	return strings.TrimSpace(symbol), nil
}
