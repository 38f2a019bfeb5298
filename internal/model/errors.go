package model

import "errors"

var (
	// ErrOutOfBounds reports a tick or sqrt price outside the curve's domain.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrInvalidParameters reports malformed caller input.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrNoLiquidityAvailable is returned when no lender can cover a borrow.
	ErrNoLiquidityAvailable = errors.New("no liquidity available")
	// ErrPoolNotFound is returned for missing or unreadable pools.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrNotionalCapExceeded is returned when a borrow exceeds the USD cap.
	ErrNotionalCapExceeded = errors.New("notional cap exceeded")
)
