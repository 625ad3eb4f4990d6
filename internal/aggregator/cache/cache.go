package cache

import (
    "context"
    "sync"
    "time"

    "golang.org/x/sync/singleflight"

    "swapquote/internal/aggregator"
    "swapquote/internal/currency"
    "swapquote/internal/metrics"
)

// entry stores one cached value with its expiry.
type entry[T any] struct {
    expiresAt time.Time
    value     T
}

// DefaultRefreshTimeout bounds a shared refresh once it is detached from the
// caller that started it.
const DefaultRefreshTimeout = 10 * time.Second

// Aggregator memoizes Currencies and Prices of the wrapped aggregator for TTL.
// Quote is never cached.
// When a refresh fails and an expired value exists, the expired value is
// served instead of the error.
type Aggregator struct {
    aggregator.Aggregator
    TTL time.Duration
    // RefreshTimeout bounds one upstream refresh; DefaultRefreshTimeout if zero.
    RefreshTimeout time.Duration

    mu         sync.RWMutex
    currencies *entry[[]currency.Currency]
    prices     *entry[currency.Prices]
    group      singleflight.Group
    now        func() time.Time
}

func New(a aggregator.Aggregator, ttl time.Duration) *Aggregator {
    return &Aggregator{Aggregator: a, TTL: ttl, now: time.Now}
}

func (c *Aggregator) Currencies(ctx context.Context) ([]currency.Currency, error) {
    if c.TTL <= 0 {
        return c.Aggregator.Currencies(ctx)
    }
    c.mu.RLock()
    e := c.currencies
    c.mu.RUnlock()
    if e != nil && c.clock().Before(e.expiresAt) {
        c.lookup("currencies", true)
        return e.value, nil
    }
    c.lookup("currencies", false)

    v, err := c.shared(ctx, "currencies", func(ctx context.Context) (any, error) {
        return c.Aggregator.Currencies(ctx)
    })
    if err != nil {
        if e != nil {
            return e.value, nil
        }
        return nil, err
    }
    cs := v.([]currency.Currency)
    c.mu.Lock()
    c.currencies = &entry[[]currency.Currency]{expiresAt: c.clock().Add(c.TTL), value: cs}
    c.mu.Unlock()
    return cs, nil
}

// Prices returns a copy so callers may merge into the result freely.
func (c *Aggregator) Prices(ctx context.Context) (currency.Prices, error) {
    if c.TTL <= 0 {
        return c.Aggregator.Prices(ctx)
    }
    c.mu.RLock()
    e := c.prices
    c.mu.RUnlock()
    if e != nil && c.clock().Before(e.expiresAt) {
        c.lookup("prices", true)
        return clonePrices(e.value), nil
    }
    c.lookup("prices", false)

    v, err := c.shared(ctx, "prices", func(ctx context.Context) (any, error) {
        return c.Aggregator.Prices(ctx)
    })
    if err != nil {
        if e != nil {
            return clonePrices(e.value), nil
        }
        return nil, err
    }
    ps := clonePrices(v.(currency.Prices))
    c.mu.Lock()
    c.prices = &entry[currency.Prices]{expiresAt: c.clock().Add(c.TTL), value: ps}
    c.mu.Unlock()
    return clonePrices(ps), nil
}

// shared runs one refresh for all concurrent callers. The refresh does not
// inherit the starting caller's cancellation; each caller only stops waiting
// when its own context ends.
func (c *Aggregator) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
    timeout := c.RefreshTimeout
    if timeout <= 0 {
        timeout = DefaultRefreshTimeout
    }
    ch := c.group.DoChan(key, func() (any, error) {
        callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
        defer cancel()
        return fn(callCtx)
    })
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case r := <-ch:
        return r.Val, r.Err
    }
}

func (c *Aggregator) clock() time.Time {
    if c.now == nil {
        return time.Now()
    }
    return c.now()
}

func (c *Aggregator) lookup(kind string, hit bool) {
    result := "miss"
    if hit { result = "hit" }
    metrics.CacheLookups.WithLabelValues(c.Name()+"_"+kind, result).Inc()
}

func clonePrices(p currency.Prices) currency.Prices {
    out := make(currency.Prices, len(p))
    for k, v := range p {
        out[k] = v
    }
    return out
}
