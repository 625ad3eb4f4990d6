package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/ethereum/go-ethereum/common"
    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"
)

type Server struct {
    Port              string `json:"port" yaml:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
    MetricsPort       int    `json:"metrics_port" yaml:"metrics_port"`
}

type Log struct {
    Level string `json:"level" yaml:"level"`
}

type Chain struct {
    ID     uint64 `json:"id" yaml:"id"`
    RPCURL string `json:"rpc_url" yaml:"rpc_url"`
}

// Limits are the decorators applied around one aggregator.
type Limits struct {
    MaxRequestsPerMinute  int `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
    MinRequestIntervalSec int `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
    Burst                 int `json:"burst" yaml:"burst"`
    CacheTTLSeconds       int `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
}

type Clober struct {
    Enabled          bool   `json:"enabled" yaml:"enabled"`
    SubgraphURL      string `json:"subgraph_url" yaml:"subgraph_url"`
    SubgraphAPIKey   string `json:"subgraph_api_key" yaml:"subgraph_api_key"`
    Controller       string `json:"controller" yaml:"controller"`
    BookViewer       string `json:"book_viewer" yaml:"book_viewer"`
    BooksCacheTTLSec int    `json:"books_cache_ttl_sec" yaml:"books_cache_ttl_sec"`
    Limits           `yaml:",inline"`
}

type Odos struct {
    Enabled      bool   `json:"enabled" yaml:"enabled"`
    BaseURL      string `json:"base_url" yaml:"base_url"`
    APIKey       string `json:"api_key" yaml:"api_key"`
    Router       string `json:"router" yaml:"router"`
    ReferralCode uint64 `json:"referral_code" yaml:"referral_code"`
    Limits       `yaml:",inline"`
}

type OpenOcean struct {
    Enabled  bool   `json:"enabled" yaml:"enabled"`
    BaseURL  string `json:"base_url" yaml:"base_url"`
    Referrer string `json:"referrer" yaml:"referrer"`
    Exchange string `json:"exchange" yaml:"exchange"`
    Limits   `yaml:",inline"`
}

// Gateway routes the named aggregators through a proxy contract.
type Gateway struct {
    Enabled     bool     `json:"enabled" yaml:"enabled"`
    Address     string   `json:"address" yaml:"address"`
    Aggregators []string `json:"aggregators" yaml:"aggregators"`
}

type Leaderboard struct {
    DatabaseURL   string `json:"database_url" yaml:"database_url"`
    RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
    RedisPassword string `json:"redis_password" yaml:"redis_password"`
    RedisDB       int    `json:"redis_db" yaml:"redis_db"`
    CacheTTLSec   int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
    Limit         int    `json:"limit" yaml:"limit"`
}

type Config struct {
    Server      Server      `json:"server" yaml:"server"`
    Log         Log         `json:"log" yaml:"log"`
    Chain       Chain       `json:"chain" yaml:"chain"`
    Clober      Clober      `json:"clober" yaml:"clober"`
    Odos        Odos        `json:"odos" yaml:"odos"`
    OpenOcean   OpenOcean   `json:"openocean" yaml:"openocean"`
    Gateway     Gateway     `json:"gateway" yaml:"gateway"`
    Leaderboard Leaderboard `json:"leaderboard" yaml:"leaderboard"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 10},
        Log:    Log{Level: "info"},
        Chain:  Chain{ID: 8453},
        Clober: Clober{
            Enabled:          false,
            BooksCacheTTLSec: 60,
            Limits:           Limits{CacheTTLSeconds: 60},
        },
        Odos: Odos{
            Enabled: true,
            BaseURL: "https://api.odos.xyz",
            Router:  "0x19cEeAd7105607Cd444F5ad10dd51356436095a1",
            Limits:  Limits{MaxRequestsPerMinute: 600, Burst: 10, CacheTTLSeconds: 30},
        },
        OpenOcean: OpenOcean{
            Enabled:  true,
            BaseURL:  "https://open-api.openocean.finance",
            Exchange: "0x6352a56caadC4F1E25CD6c75970Fa768A3304e64",
            Limits:   Limits{MaxRequestsPerMinute: 120, Burst: 2, CacheTTLSeconds: 30},
        },
        Leaderboard: Leaderboard{CacheTTLSec: 60, Limit: 100},
    }
}

// Load reads config from path (JSON, or YAML for .yaml/.yml). If path is
// empty it falls back to config.json when present. A .env file in the
// working directory is loaded first; environment variables then override
// select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if err := loadDotEnv(".env"); err != nil {
        return cfg, err
    }
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := decode(path, b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, cfg.Validate()
}

func decode(path string, b []byte, cfg *Config) error {
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yaml", ".yml":
        return yaml.Unmarshal(b, cfg)
    default:
        return json.Unmarshal(b, cfg)
    }
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(path string) error {
    if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
        return nil
    }
    if err := godotenv.Load(path); err != nil {
        return fmt.Errorf("load %s: %w", path, err)
    }
    return nil
}

// Validate checks addresses of enabled components.
func (c Config) Validate() error {
    var errs []error
    check := func(name, addr string) {
        if !common.IsHexAddress(addr) {
            errs = append(errs, fmt.Errorf("%s: invalid address %q", name, addr))
        }
    }
    if c.Clober.Enabled {
        check("clober.controller", c.Clober.Controller)
        check("clober.book_viewer", c.Clober.BookViewer)
        if c.Clober.SubgraphURL == "" {
            errs = append(errs, errors.New("clober.subgraph_url is required"))
        }
        if c.Chain.RPCURL == "" {
            errs = append(errs, errors.New("chain.rpc_url is required for clober"))
        }
    }
    if c.Odos.Enabled {
        check("odos.router", c.Odos.Router)
    }
    if c.OpenOcean.Enabled {
        check("openocean.exchange", c.OpenOcean.Exchange)
    }
    if c.Gateway.Enabled {
        check("gateway.address", c.Gateway.Address)
    }
    return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("METRICS_PORT"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Server.MetricsPort = x }
    }
    if v := os.Getenv("LOG_LEVEL"); v != "" { cfg.Log.Level = v }

    if v := os.Getenv("CHAIN_ID"); v != "" {
        var x uint64; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Chain.ID = x }
    }
    if v := os.Getenv("RPC_URL"); v != "" { cfg.Chain.RPCURL = v }

    if v := os.Getenv("CLOBER_ENABLED"); v != "" { cfg.Clober.Enabled = parseBool(v, cfg.Clober.Enabled) }
    if v := os.Getenv("CLOBER_SUBGRAPH_URL"); v != "" { cfg.Clober.SubgraphURL = v }
    if v := os.Getenv("CLOBER_SUBGRAPH_API_KEY"); v != "" { cfg.Clober.SubgraphAPIKey = v }
    if v := os.Getenv("CLOBER_CONTROLLER"); v != "" { cfg.Clober.Controller = v }
    if v := os.Getenv("CLOBER_BOOK_VIEWER"); v != "" { cfg.Clober.BookViewer = v }

    if v := os.Getenv("ODOS_ENABLED"); v != "" { cfg.Odos.Enabled = parseBool(v, cfg.Odos.Enabled) }
    if v := os.Getenv("ODOS_API_KEY"); v != "" { cfg.Odos.APIKey = v }
    if v := os.Getenv("ODOS_BASE_URL"); v != "" { cfg.Odos.BaseURL = v }
    if v := os.Getenv("ODOS_REFERRAL_CODE"); v != "" {
        var x uint64; fmt.Sscanf(v, "%d", &x); cfg.Odos.ReferralCode = x
    }
    if v := os.Getenv("ODOS_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.Odos.MaxRequestsPerMinute = x }
    }

    if v := os.Getenv("OPENOCEAN_ENABLED"); v != "" { cfg.OpenOcean.Enabled = parseBool(v, cfg.OpenOcean.Enabled) }
    if v := os.Getenv("OPENOCEAN_BASE_URL"); v != "" { cfg.OpenOcean.BaseURL = v }
    if v := os.Getenv("OPENOCEAN_REFERRER"); v != "" { cfg.OpenOcean.Referrer = v }
    if v := os.Getenv("OPENOCEAN_MAX_RPM"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x >= 0 { cfg.OpenOcean.MaxRequestsPerMinute = x }
    }

    if v := os.Getenv("GATEWAY_ENABLED"); v != "" { cfg.Gateway.Enabled = parseBool(v, cfg.Gateway.Enabled) }
    if v := os.Getenv("GATEWAY_ADDRESS"); v != "" { cfg.Gateway.Address = v }
    if v := os.Getenv("GATEWAY_AGGREGATORS"); v != "" { cfg.Gateway.Aggregators = splitCSV(v) }

    if v := os.Getenv("DATABASE_URL"); v != "" { cfg.Leaderboard.DatabaseURL = v }
    if v := os.Getenv("REDIS_ADDR"); v != "" { cfg.Leaderboard.RedisAddr = v }
    if v := os.Getenv("REDIS_PASSWORD"); v != "" { cfg.Leaderboard.RedisPassword = v }
    if v := os.Getenv("LEADERBOARD_CACHE_TTL_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Leaderboard.CacheTTLSec = x }
    }
}

func parseBool(v string, def bool) bool {
    switch strings.ToLower(strings.TrimSpace(v)) {
    case "1", "true", "yes", "y":
        return true
    case "0", "false", "no", "n":
        return false
    }
    return def
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
