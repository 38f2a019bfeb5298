package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolState is a read-only snapshot of a V3 pool.
type PoolState struct {
	Address      common.Address `json:"address"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Tick         int32          `json:"tick"`
	SqrtPriceX96 *uint256.Int   `json:"sqrt_price_x96"`
	Liquidity    *uint256.Int   `json:"liquidity"`
	Fee          uint32         `json:"fee"`
	TickSpacing  int32          `json:"tick_spacing"`
	Unlocked     bool           `json:"unlocked"`
	BlockNumber  uint64         `json:"block_number,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TokenIn returns the address of the token sold by a swap in the given direction.
func (p PoolState) TokenIn(zeroForOne bool) common.Address {
	if zeroForOne {
		return p.Token0
	}
	return p.Token1
}

// TokenOut returns the address of the token bought by a swap in the given direction.
func (p PoolState) TokenOut(zeroForOne bool) common.Address {
	if zeroForOne {
		return p.Token1
	}
	return p.Token0
}

// Token captures the ERC20 metadata the engine needs.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}
