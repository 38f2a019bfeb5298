package model

import (
	"fmt"

	"github.com/holiman/uint256"
)

// TickRange is an ordered pair of tick indices.
type TickRange struct {
	Lower int32 `json:"lower"`
	Upper int32 `json:"upper"`
}

// Width returns the number of ticks covered by the range.
func (r TickRange) Width() int32 {
	return r.Upper - r.Lower
}

// Contains reports whether the tick is inside [Lower, Upper).
func (r TickRange) Contains(tick int32) bool {
	return tick >= r.Lower && tick < r.Upper
}

func (r TickRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Lower, r.Upper)
}

// Position is a concentrated liquidity position evaluated at one sqrt price.
type Position struct {
	Range     TickRange    `json:"range"`
	Liquidity *uint256.Int `json:"liquidity"`
	Amount0   *uint256.Int `json:"amount0"`
	Amount1   *uint256.Int `json:"amount1"`
}
