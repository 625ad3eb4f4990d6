package quote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/aggregate"
	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
	"swapquote/internal/logger"
	"swapquote/internal/metrics"
	"swapquote/internal/onchain"
)

// ErrUnknownCurrency is returned by Resolve when no catalog lists the address
// and no RPC endpoint is configured to read it.
var ErrUnknownCurrency = errors.New("unknown currency")

// Service answers currency, price and quote requests for one chain.
type Service struct {
	chain chain.Chain
	aggs  []aggregator.Aggregator
	rpc   onchain.Caller
	log   *logger.Logger
}

// NewService builds a Service. rpc may be nil, in which case Resolve only
// knows catalog currencies.
func NewService(c chain.Chain, aggs []aggregator.Aggregator, rpc onchain.Caller, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{chain: c, aggs: aggs, rpc: rpc, log: log}
}

func (s *Service) Chain() chain.Chain                   { return s.chain }
func (s *Service) Aggregators() []aggregator.Aggregator { return s.aggs }

// Currencies is the union of every aggregator catalog plus the native
// currency, sorted by symbol. The first aggregator listing an address wins.
// It fails only when every aggregator fails.
func (s *Service) Currencies(ctx context.Context) ([]currency.Currency, error) {
	lists := make([][]currency.Currency, len(s.aggs))
	errs := make([]error, len(s.aggs))
	var wg sync.WaitGroup
	for i, a := range s.aggs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lists[i], errs[i] = a.Currencies(ctx)
		}()
	}
	wg.Wait()

	seen := map[common.Address]bool{currency.Native: true}
	out := []currency.Currency{s.chain.NativeCurrency}
	failed := 0
	for i, list := range lists {
		if errs[i] != nil {
			failed++
			s.log.Warn("aggregator currencies failed", "aggregator", s.aggs[i].Name(), "error", errs[i])
			continue
		}
		for _, c := range list {
			if seen[c.Address] {
				continue
			}
			seen[c.Address] = true
			out = append(out, c)
		}
	}
	if len(s.aggs) > 0 && failed == len(s.aggs) {
		return nil, fmt.Errorf("currencies: %w", errors.Join(errs...))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// Resolve finds the currency at addr: native, then the catalogs, then the
// token contract itself.
func (s *Service) Resolve(ctx context.Context, addr common.Address) (currency.Currency, error) {
	cs, err := s.ResolveAll(ctx, addr)
	if err != nil {
		return currency.Currency{}, err
	}
	return cs[0], nil
}

// ResolveAll resolves every address like Resolve does, reading the catalogs
// at most once. The result is in argument order.
func (s *Service) ResolveAll(ctx context.Context, addrs ...common.Address) ([]currency.Currency, error) {
	var catalog []currency.Currency
	loaded := false
	out := make([]currency.Currency, 0, len(addrs))
	for _, addr := range addrs {
		if addr == currency.Native {
			out = append(out, s.chain.NativeCurrency)
			continue
		}
		if !loaded {
			catalog, _ = s.Currencies(ctx)
			loaded = true
		}
		c, err := s.resolveToken(ctx, catalog, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) resolveToken(ctx context.Context, catalog []currency.Currency, addr common.Address) (currency.Currency, error) {
	for _, c := range catalog {
		if c.Address == addr {
			return c, nil
		}
	}
	if s.rpc == nil {
		return currency.Currency{}, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownCurrency)
	}
	c, err := onchain.FetchCurrency(ctx, s.rpc, s.chain.NativeCurrency, addr)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("%s: %w", addr.Hex(), err)
	}
	return c, nil
}

func (s *Service) Prices(ctx context.Context) (currency.Prices, error) {
	return aggregate.FetchPrices(ctx, s.aggs)
}

// Quote fetches quotes and prices concurrently and selects the best quote.
// A price failure degrades to raw-amount ranking instead of failing.
func (s *Service) Quote(ctx context.Context, req aggregator.Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	var (
		wg        sync.WaitGroup
		prices    currency.Prices
		pricesErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		prices, pricesErr = s.Prices(ctx)
	}()
	quotes, err := Fetch(ctx, s.aggs, req, s.log)
	wg.Wait()
	if err != nil {
		return Result{}, err
	}
	if pricesErr != nil {
		s.log.Warn("prices unavailable, ranking by amount", "error", pricesErr)
		prices = currency.Prices{}
	}

	res, err := Select(quotes, req.Out, s.chain.NativeCurrency, prices, req.GasPriceOrZero())
	if err != nil {
		return Result{}, err
	}
	metrics.SelectedQuotes.WithLabelValues(res.Best.AggregatorName(), string(res.Ranking)).Inc()
	s.log.Debug("quote selected",
		"in", req.In.Key(), "out", req.Out.Key(), "amountIn", req.AmountIn.String(),
		"aggregator", res.Best.AggregatorName(), "ranking", string(res.Ranking),
		"candidates", len(res.All))
	return res, nil
}
