package ticks

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/model"
)

func TestTickToSqrtPriceKnownValues(t *testing.T) {
	atZero, err := TickToSqrtPrice(0)
	require.NoError(t, err)
	assert.Equal(t, Q96.Dec(), atZero.Dec())

	atMin, err := TickToSqrtPrice(MinTick)
	require.NoError(t, err)
	assert.Equal(t, MinSqrtRatio.Dec(), atMin.Dec())

	atMax, err := TickToSqrtPrice(MaxTick)
	require.NoError(t, err)
	assert.Equal(t, MaxSqrtRatio.Dec(), atMax.Dec())
}

func TestTickToSqrtPriceOutOfBounds(t *testing.T) {
	_, err := TickToSqrtPrice(MinTick - 1)
	require.ErrorIs(t, err, model.ErrOutOfBounds)

	_, err = TickToSqrtPrice(MaxTick + 1)
	require.ErrorIs(t, err, model.ErrOutOfBounds)
}

func TestSqrtPriceToTickBounds(t *testing.T) {
	tick, err := SqrtPriceToTick(MinSqrtRatio)
	require.NoError(t, err)
	assert.Equal(t, MinTick, tick)

	belowMax := new(uint256.Int).SubUint64(MaxSqrtRatio, 1)
	tick, err = SqrtPriceToTick(belowMax)
	require.NoError(t, err)
	assert.Equal(t, MaxTick-1, tick)

	_, err = SqrtPriceToTick(MaxSqrtRatio)
	require.ErrorIs(t, err, model.ErrOutOfBounds)

	belowMin := new(uint256.Int).SubUint64(MinSqrtRatio, 1)
	_, err = SqrtPriceToTick(belowMin)
	require.ErrorIs(t, err, model.ErrOutOfBounds)
}

func TestSqrtPriceToTickRoundTrip(t *testing.T) {
	samples := []int32{MinTick, MinTick + 1, -500000, -60, -1, 0, 1, 60, 500000, MaxTick - 1}
	for tick := MinTick; tick < MaxTick; tick += 7919 {
		samples = append(samples, tick)
	}

	for _, tick := range samples {
		price, err := TickToSqrtPrice(tick)
		require.NoError(t, err, "tick %d", tick)

		got, err := SqrtPriceToTick(price)
		require.NoError(t, err, "tick %d", tick)

		diff := got - tick
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, int32(1), "tick %d round-tripped to %d", tick, got)
	}
}

func TestSqrtPriceToTickPicksFloorTick(t *testing.T) {
	for _, tick := range []int32{-200000, -1, 0, 1, 12345, 400000} {
		next, err := TickToSqrtPrice(tick + 1)
		require.NoError(t, err)

		justBelow := new(uint256.Int).SubUint64(next, 1)
		got, err := SqrtPriceToTick(justBelow)
		require.NoError(t, err)
		assert.Equal(t, tick, got)

		got, err = SqrtPriceToTick(next)
		require.NoError(t, err)
		assert.Equal(t, tick+1, got)
	}
}

func TestTickToSqrtPriceMonotonic(t *testing.T) {
	prev, err := TickToSqrtPrice(MinTick)
	require.NoError(t, err)

	for tick := MinTick + 1; tick <= MaxTick; tick += 3331 {
		cur, err := TickToSqrtPrice(tick)
		require.NoError(t, err)
		require.True(t, cur.Gt(prev), "price at %d not above previous sample", tick)
		prev = cur
	}

	for tick := int32(-100); tick < 100; tick++ {
		a, err := TickToSqrtPrice(tick)
		require.NoError(t, err)
		b, err := TickToSqrtPrice(tick + 1)
		require.NoError(t, err)
		require.True(t, b.Gt(a), "price at %d not above %d", tick+1, tick)
	}
}
