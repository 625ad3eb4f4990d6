package ratelimit

import (
    "context"
    "time"

    "golang.org/x/time/rate"

    "swapquote/internal/aggregator"
)

// Aggregator gates Quote calls of the wrapped aggregator with a token bucket.
// Catalog and price calls are not limited; put a cache in front of those.
// A caller whose context ends while waiting gets the context error, which the
// fetcher treats like any other per-source failure.
type Aggregator struct {
    aggregator.Aggregator
    Limiter *rate.Limiter
}

// New allows perSecond quotes with the given burst.
func New(a aggregator.Aggregator, perSecond float64, burst int) *Aggregator {
    if burst <= 0 { burst = 1 }
    return &Aggregator{Aggregator: a, Limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Every enforces a minimum interval between quotes.
func Every(a aggregator.Aggregator, interval time.Duration) *Aggregator {
    return &Aggregator{Aggregator: a, Limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (l *Aggregator) Quote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
    if l.Limiter != nil {
        if err := l.Limiter.Wait(ctx); err != nil {
            return aggregator.Quote{}, err
        }
    }
    return l.Aggregator.Quote(ctx, req)
}
