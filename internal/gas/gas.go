// Package gas quotes gas prices and per-step gas units.
package gas

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"jitscope/internal/chain"
	"jitscope/internal/model"
)

// Estimator returns the current gas price and the per-step unit table.
type Estimator interface {
	GasQuote(ctx context.Context) (model.GasQuote, error)
}

// ChainEstimator asks the node for a suggested gas price.
type ChainEstimator struct {
	pricer chain.GasPricer
	costs  model.GasCosts
	logger *zap.Logger
}

func NewChainEstimator(pricer chain.GasPricer, logger *zap.Logger) *ChainEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainEstimator{pricer: pricer, costs: model.DefaultGasCosts(), logger: logger}
}

func (e *ChainEstimator) GasQuote(ctx context.Context) (model.GasQuote, error) {
	price, err := e.pricer.SuggestGasPrice(ctx)
	if err != nil {
		return model.GasQuote{}, fmt.Errorf("suggest gas price: %w", err)
	}
	e.logger.Debug("gas price", zap.String("wei", price.String()))
	return model.GasQuote{GasPrice: price, Costs: e.costs}, nil
}

// Static quotes a fixed gas price.
type Static struct {
	Price *big.Int
}

func (s Static) GasQuote(context.Context) (model.GasQuote, error) {
	if s.Price == nil {
		return model.GasQuote{}, fmt.Errorf("static gas price unset: %w", model.ErrInvalidParameters)
	}
	return model.GasQuote{GasPrice: new(big.Int).Set(s.Price), Costs: model.DefaultGasCosts()}, nil
}

// Gwei converts a gwei amount to wei.
func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

// Cost returns units * price in wei.
func Cost(units uint64, price *big.Int) *big.Int {
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(units), price)
}
