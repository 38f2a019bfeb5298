package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/chain/chaintest"
	"jitscope/internal/model"
)

var (
	testPool   = common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8")
	testToken0 = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testToken1 = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func registerPool(t *testing.T, caller *chaintest.Caller, tick int64) {
	t.Helper()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)

	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)
	caller.Return(testPool, poolABI, "slot0", sqrtPrice, big.NewInt(tick), uint16(1), uint16(1), uint16(1), uint8(0), true)
	caller.Return(testPool, poolABI, "liquidity", new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	caller.Return(testPool, poolABI, "fee", big.NewInt(3000))
	caller.Return(testPool, poolABI, "tickSpacing", big.NewInt(60))
	caller.Return(testPool, poolABI, "token0", testToken0)
	caller.Return(testPool, poolABI, "token1", testToken1)
}

func TestPoolStateReadsSlot0AndImmutables(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, 0)

	provider := NewPoolStateProvider(caller, PoolStateConfig{}, nil)
	state, err := provider.PoolState(context.Background(), testPool, nil)
	require.NoError(t, err)

	assert.Equal(t, testPool, state.Address)
	assert.Equal(t, testToken0, state.Token0)
	assert.Equal(t, testToken1, state.Token1)
	assert.Equal(t, int32(0), state.Tick)
	assert.Equal(t, uint32(3000), state.Fee)
	assert.Equal(t, int32(60), state.TickSpacing)
	assert.True(t, state.Unlocked)
	assert.Equal(t, "1000000000000000000", state.Liquidity.Dec())
	assert.Equal(t, new(big.Int).Lsh(big.NewInt(1), 96).String(), state.SqrtPriceX96.Dec())
}

func TestPoolStateNegativeTick(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, -887220)

	provider := NewPoolStateProvider(caller, PoolStateConfig{}, nil)
	state, err := provider.PoolState(context.Background(), testPool, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-887220), state.Tick)
}

func TestPoolStateCachesLatestReads(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, 0)
	poolABI, err := V3PoolABI()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	provider := NewPoolStateProvider(caller, PoolStateConfig{CacheTTL: 2 * time.Second}, nil)
	provider.now = func() time.Time { return now }

	ctx := context.Background()
	_, err = provider.PoolState(ctx, testPool, nil)
	require.NoError(t, err)
	_, err = provider.PoolState(ctx, testPool, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, caller.Calls(testPool, poolABI, "slot0"))

	now = now.Add(3 * time.Second)
	_, err = provider.PoolState(ctx, testPool, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, caller.Calls(testPool, poolABI, "slot0"))

	_, err = provider.PoolState(ctx, testPool, big.NewInt(19_000_000))
	require.NoError(t, err)
	assert.Equal(t, 3, caller.Calls(testPool, poolABI, "slot0"))
}

func TestPoolStatePinnedBlock(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, 0)

	provider := NewPoolStateProvider(caller, PoolStateConfig{}, nil)
	state, err := provider.PoolState(context.Background(), testPool, big.NewInt(19_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(19_000_000), state.BlockNumber)
}

func TestPoolStateNotFound(t *testing.T) {
	caller := chaintest.NewCaller()
	provider := NewPoolStateProvider(caller, PoolStateConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)

	_, err := provider.PoolState(context.Background(), common.HexToAddress("0x01"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrPoolNotFound))

	_, err = provider.PoolState(context.Background(), common.Address{}, nil)
	assert.True(t, errors.Is(err, model.ErrPoolNotFound))
}

func TestPoolStateRevertingContract(t *testing.T) {
	caller := chaintest.NewCaller()
	notAPool := common.HexToAddress("0x02")
	caller.SetCode(notAPool)

	provider := NewPoolStateProvider(caller, PoolStateConfig{}, nil)
	_, err := provider.PoolState(context.Background(), notAPool, nil)
	assert.True(t, errors.Is(err, model.ErrPoolNotFound))
}

func TestPoolStateRetriesTransientFailures(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, 0)
	poolABI, err := V3PoolABI()
	require.NoError(t, err)

	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)
	slot0, err := poolABI.Methods["slot0"].Outputs.Pack(sqrtPrice, big.NewInt(0), uint16(1), uint16(1), uint16(1), uint8(0), true)
	require.NoError(t, err)
	failures := 1
	caller.Handle(testPool, poolABI, "slot0", func([]byte, *big.Int) ([]byte, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("read tcp 10.0.0.1:8545: connection reset by peer")
		}
		return slot0, nil
	})

	provider := NewPoolStateProvider(caller, PoolStateConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	state, err := provider.PoolState(context.Background(), testPool, nil)
	require.NoError(t, err)
	assert.Equal(t, testToken0, state.Token0)
	assert.Equal(t, 2, caller.Calls(testPool, poolABI, "slot0"))
}

func TestPoolStateTransportFailureIsNotNotFound(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, 0)
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	caller.Handle(testPool, poolABI, "liquidity", func([]byte, *big.Int) ([]byte, error) {
		return nil, errors.New("connection reset by peer")
	})

	provider := NewPoolStateProvider(caller, PoolStateConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
	_, err = provider.PoolState(context.Background(), testPool, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrPoolNotFound))
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Equal(t, 3, caller.Calls(testPool, poolABI, "liquidity"))
}

func TestPoolStateRevertIsNotRetried(t *testing.T) {
	caller := chaintest.NewCaller()
	registerPool(t, caller, 0)
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	caller.Handle(testPool, poolABI, "fee", func([]byte, *big.Int) ([]byte, error) {
		return nil, errors.New("execution reverted")
	})

	provider := NewPoolStateProvider(caller, PoolStateConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	_, err = provider.PoolState(context.Background(), testPool, nil)
	assert.True(t, errors.Is(err, model.ErrPoolNotFound))
	assert.Equal(t, 1, caller.Calls(testPool, poolABI, "fee"))
}
