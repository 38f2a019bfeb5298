package ticks

import (
	"fmt"

	"github.com/holiman/uint256"

	"jitscope/internal/model"
)

// ComputeTickRange centers a range of widthInTicks on the tick of sqrtPriceX96 and
// aligns both bounds outward to tickSpacing. The result is never empty.
func ComputeTickRange(sqrtPriceX96 *uint256.Int, tickSpacing int32, widthInTicks int32) (model.TickRange, error) {
	if err := validateSpacing(tickSpacing); err != nil {
		return model.TickRange{}, err
	}
	if widthInTicks < 0 {
		return model.TickRange{}, fmt.Errorf("negative range width %d: %w", widthInTicks, model.ErrInvalidParameters)
	}

	current, err := SqrtPriceToTick(sqrtPriceX96)
	if err != nil {
		return model.TickRange{}, err
	}

	half := int64(widthInTicks) / 2
	lower := int64(current) - half
	upper := int64(current) + (int64(widthInTicks) - half)
	return alignOutward(lower, upper, int64(tickSpacing)), nil
}

// AlignTickRange aligns a caller supplied range outward to tickSpacing, applying the
// same clamping and never-empty policy as ComputeTickRange.
func AlignTickRange(lower, upper int32, tickSpacing int32) (model.TickRange, error) {
	if err := validateSpacing(tickSpacing); err != nil {
		return model.TickRange{}, err
	}
	if lower < MinTick || upper > MaxTick {
		return model.TickRange{}, fmt.Errorf("range [%d, %d]: %w", lower, upper, model.ErrOutOfBounds)
	}
	if lower > upper {
		return model.TickRange{}, fmt.Errorf("inverted range [%d, %d]: %w", lower, upper, model.ErrInvalidParameters)
	}
	return alignOutward(int64(lower), int64(upper), int64(tickSpacing)), nil
}

// ValidateTickRange checks the domain rules of a TickRange for a pool spacing.
func ValidateTickRange(r model.TickRange, tickSpacing int32) error {
	if err := validateSpacing(tickSpacing); err != nil {
		return err
	}
	if r.Lower < MinTick || r.Upper > MaxTick {
		return fmt.Errorf("range %s: %w", r, model.ErrOutOfBounds)
	}
	if r.Lower >= r.Upper {
		return fmt.Errorf("range %s is not ordered: %w", r, model.ErrInvalidParameters)
	}
	if r.Lower%tickSpacing != 0 || r.Upper%tickSpacing != 0 {
		return fmt.Errorf("range %s not aligned to spacing %d: %w", r, tickSpacing, model.ErrInvalidParameters)
	}
	return nil
}

func validateSpacing(tickSpacing int32) error {
	if tickSpacing <= 0 || tickSpacing > MaxTick {
		return fmt.Errorf("tick spacing %d: %w", tickSpacing, model.ErrInvalidParameters)
	}
	return nil
}

func alignOutward(lower, upper, spacing int64) model.TickRange {
	minAligned := ceilToSpacing(int64(MinTick), spacing)
	maxAligned := floorToSpacing(int64(MaxTick), spacing)

	lower = clamp(floorToSpacing(lower, spacing), minAligned, maxAligned)
	upper = clamp(ceilToSpacing(upper, spacing), minAligned, maxAligned)

	if upper <= lower {
		upper = lower + spacing
		if upper > maxAligned {
			upper = maxAligned
			lower = upper - spacing
		}
	}
	return model.TickRange{Lower: int32(lower), Upper: int32(upper)}
}

func floorToSpacing(tick, spacing int64) int64 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

func ceilToSpacing(tick, spacing int64) int64 {
	q := tick / spacing
	if tick%spacing != 0 && tick > 0 {
		q++
	}
	return q * spacing
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
