package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
	"swapquote/internal/leaderboard"
	"swapquote/internal/logger"
	"swapquote/internal/metrics"
	"swapquote/internal/quote"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Quotes is the quote surface for one chain; *quote.Service satisfies it.
type Quotes interface {
	Chain() chain.Chain
	Currencies(ctx context.Context) ([]currency.Currency, error)
	ResolveAll(ctx context.Context, addrs ...common.Address) ([]currency.Currency, error)
	Prices(ctx context.Context) (currency.Prices, error)
	Quote(ctx context.Context, req aggregator.Request) (quote.Result, error)
}

// Leaderboard is satisfied by *leaderboard.Service.
type Leaderboard interface {
	Leaderboard(ctx context.Context, chainID uint64) ([]leaderboard.Entry, error)
	UserVolume(ctx context.Context, chainID uint64, address common.Address) (leaderboard.Volume, error)
	TTL() time.Duration
}

type Config struct {
	Port         string
	Timeout      time.Duration
	CORSOrigins  []string
	MaxBodyBytes int64
}

type Server struct {
	cfg    Config
	quotes map[uint64]Quotes
	board  Leaderboard
	log    *logger.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer builds the router. board may be nil, in which case the
// leaderboard routes answer 503.
func NewServer(cfg Config, quotes []Quotes, board Leaderboard, log *logger.Logger) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if log == nil {
		log = logger.Nop()
	}

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("handler panic", "path", c.Request.URL.Path, "panic", fmt.Sprint(rec))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))

	s := &Server{
		cfg:    cfg,
		quotes: make(map[uint64]Quotes, len(quotes)),
		board:  board,
		log:    log,
		router: router,
	}
	for _, q := range quotes {
		s.quotes[q.Chain().ID] = q
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		for _, allowed := range s.cfg.CORSOrigins {
			if allowed == "*" || allowed == origin {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				break
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.Use(func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}
		c.Next()
	})

	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		// route template keeps label cardinality bounded
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		s.log.Info("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"ip", c.ClientIP(),
		)
		metrics.APIRequests.WithLabelValues(c.Request.Method, endpoint, fmt.Sprintf("%d", status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration.Seconds())
	})

	s.router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	chains := s.router.Group("/api/chains/:chainId")
	{
		chains.GET("/currencies", s.handleCurrencies)
		chains.GET("/prices", s.handlePrices)
		chains.GET("/quote", s.handleQuote)
		chains.GET("/leaderboard", s.handleLeaderboard)
		chains.GET("/users/:address/volume", s.handleUserVolume)
	}
}

func (s *Server) Start() error {
	addr := ":" + strings.TrimPrefix(s.cfg.Port, ":")
	s.log.Info("starting api server", "address", addr)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.Timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping api server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
