package aggregatortest

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
)

// Fake is a canned aggregator for tests. The returned quote carries the Fake
// itself as its aggregator.
type Fake struct {
	FakeName    string
	Address     common.Address
	Network     chain.Chain
	Catalog     []currency.Currency
	PriceMap    currency.Prices
	PricesErr   error
	AmountOut   *big.Int
	Gas         uint64
	Tx          *aggregator.Transaction
	Err         error
	Delay       time.Duration
	LastRequest *aggregator.Request
}

func (f *Fake) Name() string             { return f.FakeName }
func (f *Fake) Contract() common.Address { return f.Address }
func (f *Fake) Chain() chain.Chain       { return f.Network }

func (f *Fake) Currencies(context.Context) ([]currency.Currency, error) {
	return f.Catalog, nil
}

func (f *Fake) Prices(context.Context) (currency.Prices, error) {
	if f.PricesErr != nil {
		return nil, f.PricesErr
	}
	if f.PriceMap == nil {
		return currency.Prices{}, nil
	}
	return f.PriceMap, nil
}

func (f *Fake) Quote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return aggregator.Quote{}, ctx.Err()
		case <-t.C:
		}
	}
	r := req
	f.LastRequest = &r
	if f.Err != nil {
		return aggregator.Quote{}, f.Err
	}
	q := aggregator.Quote{AmountOut: f.AmountOut, GasLimit: f.Gas, Aggregator: f}
	if req.User != nil && f.Tx != nil {
		tx := *f.Tx
		q.Transaction = &tx
	}
	return q, nil
}
