package app

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "slices"
    "time"

    "github.com/ethereum/go-ethereum/common"
    "github.com/ethereum/go-ethereum/ethclient"

    "swapquote/internal/aggregator"
    "swapquote/internal/aggregator/cache"
    "swapquote/internal/aggregator/clober"
    "swapquote/internal/aggregator/gateway"
    "swapquote/internal/aggregator/odos"
    "swapquote/internal/aggregator/openocean"
    "swapquote/internal/aggregator/ratelimit"
    "swapquote/internal/chain"
    "swapquote/internal/config"
    "swapquote/internal/httpx"
    "swapquote/internal/leaderboard"
    "swapquote/internal/logger"
    "swapquote/internal/onchain"
    "swapquote/internal/quote"
    "swapquote/internal/subgraph"
)

// App holds the services built from a Config.
type App struct {
    Quotes *quote.Service
    // Leaderboard is nil when no database is configured.
    Leaderboard *leaderboard.Service

    closers []func() error
}

// Options control the parts of Build that tests and the CLI swap out.
type Options struct {
    // SkipLeaderboard leaves Leaderboard nil even when a database is configured.
    SkipLeaderboard bool
    HTTPClient      httpx.Doer
}

// Build wires aggregators and services for cfg.Chain.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger, opts Options) (*App, error) {
    if log == nil { log = logger.Nop() }
    network, err := chain.ByID(cfg.Chain.ID)
    if err != nil { return nil, err }

    a := &App{}
    doer := opts.HTTPClient
    if doer == nil {
        doer = httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
    }

    var rpc *ethclient.Client
    if cfg.Chain.RPCURL != "" {
        rpc, err = onchain.Dial(ctx, cfg.Chain.RPCURL)
        if err != nil { return nil, err }
        a.closers = append(a.closers, func() error { rpc.Close(); return nil })
    }

    var aggs []aggregator.Aggregator
    if cfg.Clober.Enabled {
        if rpc == nil {
            _ = a.Close()
            return nil, errors.New("clober requires chain.rpc_url")
        }
        header := http.Header{}
        if cfg.Clober.SubgraphAPIKey != "" {
            header.Set("Authorization", "Bearer "+cfg.Clober.SubgraphAPIKey)
        }
        books := clober.NewSubgraphBooks(
            subgraph.New(cfg.Clober.SubgraphURL, subgraph.WithDoer(doer), subgraph.WithHeader(header)),
            time.Duration(cfg.Clober.BooksCacheTTLSec)*time.Second,
        )
        cl := clober.New(clober.Config{
            Chain:      network,
            Controller: common.HexToAddress(cfg.Clober.Controller),
            BookViewer: common.HexToAddress(cfg.Clober.BookViewer),
            Books:      books,
            RPC:        rpc,
            Logger:     log,
        })
        aggs = append(aggs, decorate(cl, cfg.Clober.Limits))
    }
    if cfg.Odos.Enabled {
        header := http.Header{}
        if cfg.Odos.APIKey != "" {
            header.Set("X-API-Key", cfg.Odos.APIKey)
        }
        client := odos.NewClient(
            odos.WithBaseURL(cfg.Odos.BaseURL),
            odos.WithHTTPClient(doer),
            odos.WithHeader(header),
        )
        od := odos.New(client, network, common.HexToAddress(cfg.Odos.Router), cfg.Odos.ReferralCode)
        aggs = append(aggs, decorate(od, cfg.Odos.Limits))
    }
    if cfg.OpenOcean.Enabled {
        client := openocean.NewClient(cfg.OpenOcean.Referrer,
            openocean.WithBaseURL(cfg.OpenOcean.BaseURL),
            openocean.WithHTTPClient(doer),
        )
        oo := openocean.New(client, network, common.HexToAddress(cfg.OpenOcean.Exchange))
        aggs = append(aggs, decorate(oo, cfg.OpenOcean.Limits))
    }
    if len(aggs) == 0 {
        _ = a.Close()
        return nil, errors.New("no aggregators enabled")
    }
    if cfg.Gateway.Enabled {
        aggs = routeThroughGateway(aggs, common.HexToAddress(cfg.Gateway.Address), cfg.Gateway.Aggregators)
    }

    // a nil *ethclient.Client must not become a non-nil Caller
    var caller onchain.Caller
    if rpc != nil { caller = rpc }
    a.Quotes = quote.NewService(network, aggs, caller, log.With("quote"))

    if cfg.Leaderboard.DatabaseURL != "" && !opts.SkipLeaderboard {
        if err := a.buildLeaderboard(ctx, cfg.Leaderboard, log); err != nil {
            _ = a.Close()
            return nil, err
        }
    }
    log.Info("aggregators ready", "chain", network.Name, "count", len(aggs))
    return a, nil
}

func (a *App) buildLeaderboard(ctx context.Context, cfg config.Leaderboard, log *logger.Logger) error {
    store, err := leaderboard.NewStore(ctx, leaderboard.StoreConfig{
        URL:            cfg.DatabaseURL,
        MaxConnections: 10,
        MaxIdle:        5,
        ConnMaxLife:    30 * time.Minute,
        Limit:          cfg.Limit,
    })
    if err != nil { return err }
    a.closers = append(a.closers, store.Close)
    if err := store.InitSchema(ctx); err != nil { return err }

    var shared leaderboard.SharedCache
    if cfg.RedisAddr != "" {
        rc, err := leaderboard.NewRedisCache(ctx, leaderboard.RedisConfig{
            Address:  cfg.RedisAddr,
            Password: cfg.RedisPassword,
            DB:       cfg.RedisDB,
        })
        if err != nil {
            // memory cache alone still serves
            log.Warn("redis unavailable, using memory cache only", "error", err)
        } else {
            a.closers = append(a.closers, rc.Close)
            shared = rc
        }
    }
    ttl := time.Duration(cfg.CacheTTLSec) * time.Second
    a.Leaderboard = leaderboard.NewService(store, shared, ttl, log.With("leaderboard"))
    return nil
}

// decorate applies the rate limit around Quote and then the catalog cache.
// A positive RPM wins over a min interval.
func decorate(agg aggregator.Aggregator, l config.Limits) aggregator.Aggregator {
    if l.MaxRequestsPerMinute > 0 {
        agg = ratelimit.New(agg, float64(l.MaxRequestsPerMinute)/60.0, l.Burst)
    } else if l.MinRequestIntervalSec > 0 {
        agg = ratelimit.Every(agg, time.Duration(l.MinRequestIntervalSec)*time.Second)
    }
    if l.CacheTTLSeconds > 0 {
        agg = cache.New(agg, time.Duration(l.CacheTTLSeconds)*time.Second)
    }
    return agg
}

// routeThroughGateway wraps the named aggregators, or all of them when names
// is empty.
func routeThroughGateway(aggs []aggregator.Aggregator, address common.Address, names []string) []aggregator.Aggregator {
    out := make([]aggregator.Aggregator, len(aggs))
    for i, agg := range aggs {
        if len(names) == 0 || slices.Contains(names, agg.Name()) {
            out[i] = gateway.New(agg, address)
            continue
        }
        out[i] = agg
    }
    return out
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
    var errs []error
    for i := len(a.closers) - 1; i >= 0; i-- {
        if err := a.closers[i](); err != nil {
            errs = append(errs, err)
        }
    }
    a.closers = nil
    if len(errs) > 0 {
        return fmt.Errorf("close: %w", errors.Join(errs...))
    }
    return nil
}
