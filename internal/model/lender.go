package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Lender identifies a flash loan venue.
type Lender string

const (
	LenderBalancer Lender = "balancer"
	LenderAave     Lender = "aave"
)

// FlashloanQuote is the orchestrator's answer for one borrow.
type FlashloanQuote struct {
	Lender       Lender         `json:"lender"`
	Token        common.Address `json:"token"`
	Amount       *big.Int       `json:"amount"`
	Fee          *big.Int       `json:"fee"`
	PoolAddress  common.Address `json:"pool_address"`
	MaxAvailable *big.Int       `json:"max_available"`
}

// BorrowCall is an encoded call to a lender contract.
type BorrowCall struct {
	To   common.Address `json:"to"`
	Data []byte         `json:"data"`
}
