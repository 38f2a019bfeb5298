package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"jitscope/internal/chain"
	"jitscope/internal/model"
)

const defaultCacheTTL = 2 * time.Second

// PoolStateConfig controls caching and retries of pool reads.
type PoolStateConfig struct {
	CacheTTL     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

type cachedPool struct {
	state   model.PoolState
	expires time.Time
}

// PoolStateProvider reads V3 pool snapshots over eth_call.
type PoolStateProvider struct {
	caller chain.Caller
	cfg    PoolStateConfig
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[common.Address]cachedPool
}

func NewPoolStateProvider(caller chain.Caller, cfg PoolStateConfig, logger *zap.Logger) *PoolStateProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &PoolStateProvider{
		caller: caller,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		cache:  make(map[common.Address]cachedPool),
	}
}

// PoolState returns the pool snapshot at block, or at the latest block when block is nil.
// Latest reads are served from a short-lived cache.
func (p *PoolStateProvider) PoolState(ctx context.Context, addr common.Address, block *big.Int) (model.PoolState, error) {
	if addr == (common.Address{}) {
		return model.PoolState{}, fmt.Errorf("zero pool address: %w", model.ErrPoolNotFound)
	}
	if block == nil {
		if state, ok := p.cached(addr); ok {
			return state, nil
		}
	}

	var state model.PoolState
	err := chain.WithRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		s, err := p.read(ctx, addr, block)
		if errors.Is(err, model.ErrPoolNotFound) {
			return chain.Permanent(err)
		}
		if err != nil {
			p.logger.Debug("pool read failed", zap.String("pool", addr.Hex()), zap.Error(err))
			return err
		}
		state = s
		return nil
	})
	if err != nil {
		return model.PoolState{}, fmt.Errorf("read pool %s: %w", addr.Hex(), err)
	}

	if block == nil && p.cfg.CacheTTL > 0 {
		p.mu.Lock()
		p.cache[addr] = cachedPool{state: state, expires: p.now().Add(p.cfg.CacheTTL)}
		p.mu.Unlock()
	}
	return state, nil
}

func (p *PoolStateProvider) cached(addr common.Address) (model.PoolState, bool) {
	p.mu.RLock()
	entry, ok := p.cache[addr]
	p.mu.RUnlock()
	if !ok || !p.now().Before(entry.expires) {
		return model.PoolState{}, false
	}
	return entry.state, true
}

func (p *PoolStateProvider) read(ctx context.Context, addr common.Address, block *big.Int) (model.PoolState, error) {
	code, err := p.caller.CodeAt(ctx, addr, block)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("code at: %w", err)
	}
	if len(code) == 0 {
		return model.PoolState{}, fmt.Errorf("no code at %s: %w", addr.Hex(), model.ErrPoolNotFound)
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}
	notPool := func(err error) error {
		return fmt.Errorf("%v: %w", err, model.ErrPoolNotFound)
	}
	// Reverts and undecodable replies mean the address is not a V3 pool; anything
	// else is a transport failure and is returned as is for retry.
	callFailed := func(err error) error {
		if chain.IsRevert(err) || errors.Is(err, errMalformedResult) {
			return notPool(err)
		}
		return err
	}

	slot0, err := callMethod(ctx, p.caller, addr, poolABI, "slot0", block)
	if err != nil {
		return model.PoolState{}, callFailed(err)
	}
	if len(slot0) < 7 {
		return model.PoolState{}, notPool(fmt.Errorf("slot0: short result"))
	}
	sqrtPrice, err := asBigInt(slot0[0])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("slot0 sqrtPriceX96: %w", err))
	}
	tickBig, err := asBigInt(slot0[1])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("slot0 tick: %w", err))
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("slot0 tick: %w", err))
	}
	unlocked, _ := slot0[6].(bool)

	liquidityValues, err := callMethod(ctx, p.caller, addr, poolABI, "liquidity", block)
	if err != nil {
		return model.PoolState{}, callFailed(err)
	}
	liquidity, err := asBigInt(liquidityValues[0])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("liquidity: %w", err))
	}

	feeValues, err := callMethod(ctx, p.caller, addr, poolABI, "fee", block)
	if err != nil {
		return model.PoolState{}, callFailed(err)
	}
	fee, err := asBigInt(feeValues[0])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("fee: %w", err))
	}

	spacingValues, err := callMethod(ctx, p.caller, addr, poolABI, "tickSpacing", block)
	if err != nil {
		return model.PoolState{}, callFailed(err)
	}
	spacingBig, err := asBigInt(spacingValues[0])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("tickSpacing: %w", err))
	}
	spacing, err := int24FromBig(spacingBig)
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("tickSpacing: %w", err))
	}

	token0Values, err := callMethod(ctx, p.caller, addr, poolABI, "token0", block)
	if err != nil {
		return model.PoolState{}, callFailed(err)
	}
	token0, err := asAddress(token0Values[0])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("token0: %w", err))
	}
	token1Values, err := callMethod(ctx, p.caller, addr, poolABI, "token1", block)
	if err != nil {
		return model.PoolState{}, callFailed(err)
	}
	token1, err := asAddress(token1Values[0])
	if err != nil {
		return model.PoolState{}, notPool(fmt.Errorf("token1: %w", err))
	}

	sqrtPriceU, overflow := uint256.FromBig(sqrtPrice)
	if overflow || sqrtPriceU.IsZero() {
		return model.PoolState{}, notPool(fmt.Errorf("slot0: invalid sqrt price %s", sqrtPrice))
	}
	liquidityU, overflow := uint256.FromBig(liquidity)
	if overflow {
		return model.PoolState{}, notPool(fmt.Errorf("liquidity overflow %s", liquidity))
	}

	state := model.PoolState{
		Address:      addr,
		Token0:       token0,
		Token1:       token1,
		Tick:         tick,
		SqrtPriceX96: sqrtPriceU,
		Liquidity:    liquidityU,
		Fee:          uint32(fee.Uint64()),
		TickSpacing:  spacing,
		Unlocked:     unlocked,
		UpdatedAt:    p.now().UTC(),
	}
	if block != nil && block.IsUint64() {
		state.BlockNumber = block.Uint64()
	}
	return state, nil
}
