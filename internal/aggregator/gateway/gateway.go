package gateway

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
	"swapquote/internal/onchain"
)

// ExtraGas is added on top of the inner estimate for the proxy hop.
const ExtraGas uint64 = 300_000

// Gateway routes the execution of one inner aggregator through a proxy
// contract that calls swap(inToken, outToken, amountIn, router, data).
type Gateway struct {
	inner   aggregator.Aggregator
	address common.Address
}

func New(inner aggregator.Aggregator, address common.Address) *Gateway {
	return &Gateway{inner: inner, address: address}
}

func (g *Gateway) Name() string             { return g.inner.Name() }
func (g *Gateway) Contract() common.Address { return g.address }
func (g *Gateway) Chain() chain.Chain       { return g.inner.Chain() }

// Inner is the wrapped aggregator.
func (g *Gateway) Inner() aggregator.Aggregator { return g.inner }

func (g *Gateway) Currencies(ctx context.Context) ([]currency.Currency, error) {
	return g.inner.Currencies(ctx)
}

func (g *Gateway) Prices(ctx context.Context) (currency.Prices, error) {
	return g.inner.Prices(ctx)
}

func (g *Gateway) Quote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
	q, err := g.inner.Quote(ctx, req)
	if err != nil {
		return aggregator.Quote{}, err
	}
	q.Aggregator = g
	if q.Transaction == nil {
		q.GasLimit = 0
		return q, nil
	}

	inner := q.Transaction
	data, err := onchain.RouterGatewayABI.Pack("swap",
		req.In.Address,
		req.Out.Address,
		req.AmountIn,
		inner.To,
		[]byte(inner.Data),
	)
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("pack gateway swap: %w", err)
	}
	value := new(big.Int)
	if req.In.IsNative() {
		value.Set(req.AmountIn)
	}
	gas := inner.Gas + ExtraGas
	q.GasLimit = gas
	q.Transaction = &aggregator.Transaction{
		Data:     data,
		To:       g.address,
		Value:    value,
		Gas:      gas,
		GasPrice: inner.GasPrice,
		From:     inner.From,
	}
	return q, nil
}
