package aggregate

import (
    "context"
    "fmt"

    "golang.org/x/sync/errgroup"

    "swapquote/internal/aggregator"
    "swapquote/internal/currency"
)

// FetchPrices calls Prices on every aggregator concurrently and merges the
// results. Any single failure fails the whole call.
func FetchPrices(ctx context.Context, aggs []aggregator.Aggregator) (currency.Prices, error) {
    results := make([]currency.Prices, len(aggs))
    g, ctx := errgroup.WithContext(ctx)
    for i, a := range aggs {
        g.Go(func() error {
            ps, err := a.Prices(ctx)
            if err != nil {
                return fmt.Errorf("%s prices: %w", a.Name(), err)
            }
            results[i] = ps
            return nil
        })
    }
    if err := g.Wait(); err != nil {
        return nil, err
    }
    return Merge(results...), nil
}

// Merge combines price maps in order; for the same address the later map
// wins. Every address ends up under its checksummed and lowercase key.
func Merge(maps ...currency.Prices) currency.Prices {
    out := currency.Prices{}
    for _, m := range maps {
        out.Merge(m)
    }
    return out
}
