package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "swapquote/internal/api"
    "swapquote/internal/app"
    "swapquote/internal/config"
    "swapquote/internal/logger"
    "swapquote/internal/metrics"
)

func main() {
    cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
    log := logger.NewWithWriter(os.Stdout, "server", cfg.Log.Level)
    if err != nil { log.Fatal("config", "error", err) }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    a, err := app.Build(ctx, cfg, log, app.Options{})
    if err != nil { log.Fatal("build", "error", err) }
    defer func() {
        if err := a.Close(); err != nil { log.Warn("close", "error", err) }
    }()

    var board api.Leaderboard
    if a.Leaderboard != nil { board = a.Leaderboard }
    srv := api.NewServer(api.Config{
        Port:    cfg.Server.Port,
        Timeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
    }, []api.Quotes{a.Quotes}, board, log.With("api"))
    ms := metrics.NewServer(cfg.Server.MetricsPort)

    errc := make(chan error, 2)
    go func() { errc <- srv.Start() }()
    if ms != nil {
        go func() { errc <- ms.Start() }()
    }

    select {
    case <-ctx.Done():
    case err := <-errc:
        if err != nil { log.Error("server stopped", "error", err) }
    }

    // graceful shutdown
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Stop(shutdownCtx)
    _ = ms.Stop(shutdownCtx)
}
