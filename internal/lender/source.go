// Package lender quotes and selects flash loan venues.
package lender

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"jitscope/internal/chain"
	"jitscope/internal/dex"
	"jitscope/internal/model"
)

// AaveFeeBps is the flash loan premium charged by the fee-charging venue.
const AaveFeeBps = 5

// LiquiditySource is one flash loan venue.
type LiquiditySource interface {
	Lender() model.Lender
	Address() common.Address
	MaxAvailable(ctx context.Context, token common.Address) (*big.Int, error)
	QuoteFee(token common.Address, amount *big.Int) *big.Int
	BuildBorrowCall(token common.Address, amount *big.Int, receiver common.Address, payload []byte) (model.BorrowCall, error)
}

// BalancerSource borrows from a Balancer vault at zero fee.
type BalancerSource struct {
	caller chain.Caller
	vault  common.Address
}

func NewBalancerSource(caller chain.Caller, vault common.Address) *BalancerSource {
	return &BalancerSource{caller: caller, vault: vault}
}

func (s *BalancerSource) Lender() model.Lender    { return model.LenderBalancer }
func (s *BalancerSource) Address() common.Address { return s.vault }

// MaxAvailable is the vault's balance of token.
func (s *BalancerSource) MaxAvailable(ctx context.Context, token common.Address) (*big.Int, error) {
	balance, err := dex.BalanceOf(ctx, s.caller, token, s.vault, nil)
	if err != nil {
		return nil, fmt.Errorf("balancer vault balance: %w", err)
	}
	return balance, nil
}

func (s *BalancerSource) QuoteFee(common.Address, *big.Int) *big.Int {
	return new(big.Int)
}

func (s *BalancerSource) BuildBorrowCall(token common.Address, amount *big.Int, receiver common.Address, payload []byte) (model.BorrowCall, error) {
	return encodeBorrowCall(model.LenderBalancer, s.vault, token, amount, receiver, payload)
}

// AaveSource borrows from an Aave v3 pool with a fixed premium.
type AaveSource struct {
	caller chain.Caller
	pool   common.Address
}

func NewAaveSource(caller chain.Caller, pool common.Address) *AaveSource {
	return &AaveSource{caller: caller, pool: pool}
}

func (s *AaveSource) Lender() model.Lender    { return model.LenderAave }
func (s *AaveSource) Address() common.Address { return s.pool }

// MaxAvailable is the reserve's aToken balance of the underlying asset.
func (s *AaveSource) MaxAvailable(ctx context.Context, token common.Address) (*big.Int, error) {
	aToken, err := s.aToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if aToken == (common.Address{}) {
		return new(big.Int), nil
	}
	balance, err := dex.BalanceOf(ctx, s.caller, token, aToken, nil)
	if err != nil {
		return nil, fmt.Errorf("aave reserve balance: %w", err)
	}
	return balance, nil
}

func (s *AaveSource) aToken(ctx context.Context, token common.Address) (common.Address, error) {
	parsed, err := AavePoolABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse aave abi: %w", err)
	}
	data, err := parsed.Pack("getReserveData", token)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getReserveData: %w", err)
	}
	resp, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &s.pool, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call getReserveData: %w", err)
	}
	values, err := parsed.Unpack("getReserveData", resp)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack getReserveData: %w", err)
	}
	if len(values) < 9 {
		return common.Address{}, fmt.Errorf("unpack getReserveData: short result")
	}
	aToken, ok := values[8].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unsupported aToken type %T", values[8])
	}
	return aToken, nil
}

func (s *AaveSource) QuoteFee(_ common.Address, amount *big.Int) *big.Int {
	return feeFor(model.LenderAave, amount)
}

func (s *AaveSource) BuildBorrowCall(token common.Address, amount *big.Int, receiver common.Address, payload []byte) (model.BorrowCall, error) {
	return encodeBorrowCall(model.LenderAave, s.pool, token, amount, receiver, payload)
}

// StubSource reports fixed availability and never touches the chain.
type StubSource struct {
	lender    model.Lender
	address   common.Address
	available *big.Int
	perToken  map[common.Address]*big.Int
}

// NewStubSource builds a deterministic venue of the given kind. perToken overrides
// available for specific tokens.
func NewStubSource(lender model.Lender, address common.Address, available *big.Int, perToken map[common.Address]*big.Int) *StubSource {
	if available == nil {
		available = new(big.Int)
	}
	return &StubSource{lender: lender, address: address, available: available, perToken: perToken}
}

func (s *StubSource) Lender() model.Lender    { return s.lender }
func (s *StubSource) Address() common.Address { return s.address }

func (s *StubSource) MaxAvailable(_ context.Context, token common.Address) (*big.Int, error) {
	if v, ok := s.perToken[token]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int).Set(s.available), nil
}

func (s *StubSource) QuoteFee(_ common.Address, amount *big.Int) *big.Int {
	return feeFor(s.lender, amount)
}

func (s *StubSource) BuildBorrowCall(token common.Address, amount *big.Int, receiver common.Address, payload []byte) (model.BorrowCall, error) {
	return encodeBorrowCall(s.lender, s.address, token, amount, receiver, payload)
}

func feeFor(lender model.Lender, amount *big.Int) *big.Int {
	if lender != model.LenderAave || amount == nil {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(AaveFeeBps))
	return fee.Quo(fee, big.NewInt(10_000))
}

func encodeBorrowCall(lender model.Lender, to, token common.Address, amount *big.Int, receiver common.Address, payload []byte) (model.BorrowCall, error) {
	if amount == nil || amount.Sign() <= 0 {
		return model.BorrowCall{}, fmt.Errorf("borrow amount must be positive: %w", model.ErrInvalidParameters)
	}
	if payload == nil {
		payload = []byte{}
	}

	var (
		data []byte
		err  error
	)
	switch lender {
	case model.LenderBalancer:
		parsed, perr := BalancerVaultABI()
		if perr != nil {
			return model.BorrowCall{}, fmt.Errorf("parse balancer abi: %w", perr)
		}
		data, err = parsed.Pack("flashLoan", receiver, []common.Address{token}, []*big.Int{amount}, payload)
	case model.LenderAave:
		parsed, perr := AavePoolABI()
		if perr != nil {
			return model.BorrowCall{}, fmt.Errorf("parse aave abi: %w", perr)
		}
		data, err = parsed.Pack("flashLoanSimple", receiver, token, amount, payload, uint16(0))
	default:
		return model.BorrowCall{}, fmt.Errorf("unknown lender %q: %w", lender, model.ErrInvalidParameters)
	}
	if err != nil {
		return model.BorrowCall{}, fmt.Errorf("pack %s borrow: %w", lender, err)
	}
	return model.BorrowCall{To: to, Data: data}, nil
}
