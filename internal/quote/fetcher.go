package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"swapquote/internal/aggregator"
	"swapquote/internal/logger"
	"swapquote/internal/metrics"
)

// ErrNoQuotes is the only error Fetch surfaces: every aggregator failed or
// returned nothing.
var ErrNoQuotes = errors.New("no quotes available")

// Fetch asks every aggregator for a quote concurrently. Individual failures
// are logged and dropped; results come back in completion order.
func Fetch(ctx context.Context, aggs []aggregator.Aggregator, req aggregator.Request, log *logger.Logger) ([]aggregator.Quote, error) {
	type result struct {
		name string
		q    aggregator.Quote
		err  error
	}
	ch := make(chan result, len(aggs))
	for _, a := range aggs {
		go func() {
			start := time.Now()
			q, err := quoteOne(ctx, a, req)
			metrics.AggregatorQuoteDuration.WithLabelValues(a.Name()).Observe(time.Since(start).Seconds())
			ch <- result{name: a.Name(), q: q, err: err}
		}()
	}

	quotes := make([]aggregator.Quote, 0, len(aggs))
	for range aggs {
		r := <-ch
		switch {
		case r.err != nil:
			metrics.AggregatorQuotes.WithLabelValues(r.name, "error").Inc()
			log.Warn("aggregator quote failed", "aggregator", r.name, "error", r.err)
			continue
		case r.q.AmountOut == nil:
			metrics.AggregatorQuotes.WithLabelValues(r.name, "error").Inc()
			log.Warn("aggregator returned no amount", "aggregator", r.name)
			continue
		case r.q.NoRoute:
			metrics.AggregatorQuotes.WithLabelValues(r.name, "no_route").Inc()
		default:
			metrics.AggregatorQuotes.WithLabelValues(r.name, "ok").Inc()
		}
		r.q.AmountIn = new(big.Int).Set(req.AmountIn)
		quotes = append(quotes, r.q)
	}
	if len(quotes) == 0 {
		return nil, ErrNoQuotes
	}
	return quotes, nil
}

// quoteOne turns a panicking aggregator into a failed one.
func quoteOne(ctx context.Context, a aggregator.Aggregator, req aggregator.Request) (q aggregator.Quote, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return a.Quote(ctx, req)
}
