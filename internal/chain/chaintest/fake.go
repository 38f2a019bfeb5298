// Package chaintest provides an in-memory chain.Caller for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Handler answers one eth_call given its calldata.
type Handler func(data []byte, block *big.Int) ([]byte, error)

type callKey struct {
	to       common.Address
	selector [4]byte
}

// Caller routes eth_call by target address and method selector.
type Caller struct {
	mu       sync.Mutex
	handlers map[callKey]Handler
	code     map[common.Address][]byte
	calls    map[callKey]int
	GasPrice *big.Int
}

func NewCaller() *Caller {
	return &Caller{
		handlers: make(map[callKey]Handler),
		code:     make(map[common.Address][]byte),
		calls:    make(map[callKey]int),
	}
}

// SetCode marks an address as a deployed contract.
func (c *Caller) SetCode(addr common.Address) {
	c.mu.Lock()
	c.code[addr] = []byte{0x60, 0x80}
	c.mu.Unlock()
}

// Handle registers a raw handler for parsed.Methods[method] on addr.
func (c *Caller) Handle(addr common.Address, parsed abi.ABI, method string, h Handler) {
	var sel [4]byte
	copy(sel[:], parsed.Methods[method].ID)
	c.mu.Lock()
	c.handlers[callKey{to: addr, selector: sel}] = h
	c.mu.Unlock()
	c.SetCode(addr)
}

// Return registers a fixed reply for a method, packed with the method's outputs.
func (c *Caller) Return(addr common.Address, parsed abi.ABI, method string, values ...interface{}) {
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	c.Handle(addr, parsed, method, func([]byte, *big.Int) ([]byte, error) {
		return out, err
	})
}

// Calls reports how many times a method was called on addr.
func (c *Caller) Calls(addr common.Address, parsed abi.ABI, method string) int {
	var sel [4]byte
	copy(sel[:], parsed.Methods[method].ID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[callKey{to: addr, selector: sel}]
}

func (c *Caller) CallContract(_ context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])
	key := callKey{to: *msg.To, selector: sel}

	c.mu.Lock()
	h, ok := c.handlers[key]
	c.calls[key]++
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return h(msg.Data[4:], blockNumber)
}

func (c *Caller) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code[account], nil
}

func (c *Caller) SuggestGasPrice(context.Context) (*big.Int, error) {
	if c.GasPrice == nil {
		return nil, fmt.Errorf("gas price unavailable")
	}
	return new(big.Int).Set(c.GasPrice), nil
}
