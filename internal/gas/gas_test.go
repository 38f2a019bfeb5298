package gas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/chain/chaintest"
	"jitscope/internal/model"
)

func TestFullCycleUnits(t *testing.T) {
	costs := model.DefaultGasCosts()
	assert.Equal(t, uint64(450_000), costs.FullCycle())
}

func TestChainEstimator(t *testing.T) {
	caller := chaintest.NewCaller()
	caller.GasPrice = Gwei(20)

	q, err := NewChainEstimator(caller, nil).GasQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20000000000", q.GasPrice.String())
	assert.Equal(t, model.DefaultGasCosts(), q.Costs)

	caller.GasPrice = nil
	_, err = NewChainEstimator(caller, nil).GasQuote(context.Background())
	assert.Error(t, err)
}

func TestStaticAndCost(t *testing.T) {
	q, err := Static{Price: Gwei(20)}.GasQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9000000000000000", Cost(q.Costs.FullCycle(), q.GasPrice).String())

	_, err = Static{}.GasQuote(context.Background())
	assert.ErrorIs(t, err, model.ErrInvalidParameters)
	assert.Equal(t, "0", Cost(1, nil).String())
}
