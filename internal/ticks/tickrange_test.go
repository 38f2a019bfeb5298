package ticks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/model"
)

func TestComputeTickRangeCentered(t *testing.T) {
	got, err := ComputeTickRange(Q96, 60, 100)
	require.NoError(t, err)
	assert.Equal(t, model.TickRange{Lower: -60, Upper: 60}, got)

	got, err = ComputeTickRange(Q96, 10, 200)
	require.NoError(t, err)
	assert.Equal(t, model.TickRange{Lower: -100, Upper: 100}, got)
}

func TestComputeTickRangeNeverEmpty(t *testing.T) {
	got, err := ComputeTickRange(Q96, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, model.TickRange{Lower: 0, Upper: 60}, got)
}

func TestComputeTickRangeClampsAtUpperBound(t *testing.T) {
	price, err := TickToSqrtPrice(MaxTick - 1)
	require.NoError(t, err)

	got, err := ComputeTickRange(price, 60, 600)
	require.NoError(t, err)
	assert.Equal(t, model.TickRange{Lower: 886920, Upper: 887220}, got)
}

func TestComputeTickRangeProperties(t *testing.T) {
	spacings := []int32{1, 10, 60, 200}
	widths := []int32{0, 1, 59, 120, 1000, 2_000_000}
	ticks := []int32{MinTick, -443636, -1, 0, 7, 443636, MaxTick - 1}

	for _, tick := range ticks {
		price, err := TickToSqrtPrice(tick)
		require.NoError(t, err)
		for _, spacing := range spacings {
			for _, width := range widths {
				r, err := ComputeTickRange(price, spacing, width)
				require.NoError(t, err)
				assert.Less(t, r.Lower, r.Upper, "tick=%d spacing=%d width=%d", tick, spacing, width)
				assert.Zero(t, r.Lower%spacing)
				assert.Zero(t, r.Upper%spacing)
				assert.GreaterOrEqual(t, r.Lower, MinTick)
				assert.LessOrEqual(t, r.Upper, MaxTick)
			}
		}
	}
}

func TestComputeTickRangeInvalidInputs(t *testing.T) {
	_, err := ComputeTickRange(Q96, 0, 100)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	_, err = ComputeTickRange(Q96, 60, -1)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	_, err = ComputeTickRange(MaxSqrtRatio, 60, 100)
	require.ErrorIs(t, err, model.ErrOutOfBounds)
}

func TestAlignTickRange(t *testing.T) {
	got, err := AlignTickRange(-1000, -500, 60)
	require.NoError(t, err)
	assert.Equal(t, model.TickRange{Lower: -1020, Upper: -480}, got)

	got, err = AlignTickRange(120, 120, 60)
	require.NoError(t, err)
	assert.Equal(t, model.TickRange{Lower: 120, Upper: 180}, got)

	_, err = AlignTickRange(600, -600, 60)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	_, err = AlignTickRange(MinTick-1, 0, 60)
	require.ErrorIs(t, err, model.ErrOutOfBounds)
}

func TestValidateTickRange(t *testing.T) {
	require.NoError(t, ValidateTickRange(model.TickRange{Lower: -120, Upper: 60}, 60))
	require.ErrorIs(t, ValidateTickRange(model.TickRange{Lower: -100, Upper: 60}, 60), model.ErrInvalidParameters)
	require.ErrorIs(t, ValidateTickRange(model.TickRange{Lower: 60, Upper: 60}, 60), model.ErrInvalidParameters)
	require.ErrorIs(t, ValidateTickRange(model.TickRange{Lower: 0, Upper: 887280}, 60), model.ErrOutOfBounds)
}
