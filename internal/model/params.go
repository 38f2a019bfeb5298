package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SimulationParams describes one candidate pending swap and the position to wrap around it.
type SimulationParams struct {
	Pool        common.Address `json:"pool"`
	AmountIn    *big.Int       `json:"amount_in"`
	ZeroForOne  bool           `json:"zero_for_one"`
	Range       *TickRange     `json:"range,omitempty"`
	Liquidity   *uint256.Int   `json:"liquidity,omitempty"`
	GasPrice    *big.Int       `json:"gas_price,omitempty"`
	BlockNumber *big.Int       `json:"block_number,omitempty"`
}

// Candidate pairs simulation params with the identity of the pending trade.
type Candidate struct {
	ID     string           `json:"id"`
	Params SimulationParams `json:"params"`
}
