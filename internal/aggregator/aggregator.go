package aggregator

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapquote/internal/chain"
	"swapquote/internal/currency"
)

// ErrInvalidAmount is returned by Quote when AmountIn is missing or not positive.
var ErrInvalidAmount = errors.New("amount in must be positive")

// Aggregator is a liquidity source able to list, price and quote currencies.
//
//go:generate mockgen -package=aggregatortest -destination=aggregatortest/mock_aggregator.go -source=aggregator.go Aggregator
type Aggregator interface {
	Name() string
	// Contract is the entry point used for on-chain execution.
	Contract() common.Address
	Chain() chain.Chain
	Currencies(ctx context.Context) ([]currency.Currency, error)
	Prices(ctx context.Context) (currency.Prices, error)
	// Quote never returns a Transaction when req.User is nil.
	Quote(ctx context.Context, req Request) (Quote, error)
}

// Request is a single quote request.
type Request struct {
	In                   currency.Currency
	Out                  currency.Currency
	AmountIn             *big.Int
	SlippageLimitPercent float64
	GasPrice             *big.Int
	// User is the signer. Nil means price discovery only.
	User *common.Address
}

// Validate checks the invariants shared by every variant.
func (r Request) Validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// GasPriceOrZero never returns nil.
func (r Request) GasPriceOrZero() *big.Int {
	if r.GasPrice == nil {
		return new(big.Int)
	}
	return r.GasPrice
}

// Quote is a priced, possibly executable, proposal from one aggregator.
type Quote struct {
	AmountIn        *big.Int     `json:"amountIn"`
	AmountOut       *big.Int     `json:"amountOut"`
	GasLimit        uint64       `json:"gasLimit"`
	Aggregator      Aggregator   `json:"-"`
	Transaction     *Transaction `json:"transaction,omitempty"`
	GasUSD          float64      `json:"gasUsd"`
	NetAmountOutUSD float64      `json:"netAmountOutUsd"`
	// NoRoute marks a zero-output quote returned because the venue had no
	// liquidity path, as opposed to a transport failure.
	NoRoute bool `json:"noRoute,omitempty"`
}

// AggregatorName is safe to call on quotes without an aggregator.
func (q Quote) AggregatorName() string {
	if q.Aggregator == nil {
		return ""
	}
	return q.Aggregator.Name()
}

// Transaction is forwarded verbatim to a wallet signer.
type Transaction struct {
	Data     hexutil.Bytes  `json:"data"`
	To       common.Address `json:"to"`
	Value    *big.Int       `json:"value"`
	Gas      uint64         `json:"gas"`
	GasPrice *big.Int       `json:"gasPrice"`
	From     common.Address `json:"from"`
}

// ClampSlippage bounds a slippage percentage to a variant's supported range.
func ClampSlippage(p, lo, hi float64) float64 {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}
