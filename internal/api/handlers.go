package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"swapquote/internal/aggregator"
	"swapquote/internal/currency"
	"swapquote/internal/leaderboard"
	"swapquote/internal/quote"
)

// DefaultSlippagePercent applies when the slippage parameter is omitted.
const DefaultSlippagePercent = 0.5

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// chainQuotes resolves :chainId or writes the error response.
func (s *Server) chainQuotes(c *gin.Context) (Quotes, bool) {
	id, err := strconv.ParseUint(c.Param("chainId"), 10, 64)
	if err != nil {
		badRequest(c, "invalid chain id")
		return nil, false
	}
	q, ok := s.quotes[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unsupported chain %d", id)})
		return nil, false
	}
	return q, true
}

func (s *Server) handleCurrencies(c *gin.Context) {
	q, ok := s.chainQuotes(c)
	if !ok {
		return
	}
	cs, err := q.Currencies(c.Request.Context())
	if err != nil {
		s.upstreamError(c, "currencies", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currencies": cs})
}

func (s *Server) handlePrices(c *gin.Context) {
	q, ok := s.chainQuotes(c)
	if !ok {
		return
	}
	ps, err := q.Prices(c.Request.Context())
	if err != nil {
		s.upstreamError(c, "prices", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": ps})
}

type quoteView struct {
	Aggregator      string                  `json:"aggregator"`
	AmountIn        string                  `json:"amountIn"`
	AmountOut       string                  `json:"amountOut"`
	GasLimit        uint64                  `json:"gasLimit"`
	GasUSD          float64                 `json:"gasUsd"`
	NetAmountOutUSD float64                 `json:"netAmountOutUsd"`
	NoRoute         bool                    `json:"noRoute,omitempty"`
	Transaction     *aggregator.Transaction `json:"transaction,omitempty"`
}

func viewOf(q aggregator.Quote) quoteView {
	return quoteView{
		Aggregator:      q.AggregatorName(),
		AmountIn:        amountString(q.AmountIn),
		AmountOut:       amountString(q.AmountOut),
		GasLimit:        q.GasLimit,
		GasUSD:          q.GasUSD,
		NetAmountOutUSD: q.NetAmountOutUSD,
		NoRoute:         q.NoRoute,
		Transaction:     q.Transaction,
	}
}

func amountString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

type quoteResponse struct {
	Best    quoteView     `json:"best"`
	All     []quoteView   `json:"all"`
	Ranking quote.Ranking `json:"ranking"`
}

func (s *Server) handleQuote(c *gin.Context) {
	q, ok := s.chainQuotes(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	inAddr, ok := currency.ParseAddress(c.Query("in"))
	if !ok {
		badRequest(c, "invalid in address")
		return
	}
	outAddr, ok := currency.ParseAddress(c.Query("out"))
	if !ok {
		badRequest(c, "invalid out address")
		return
	}
	if inAddr == outAddr {
		badRequest(c, "in and out must differ")
		return
	}
	amount, ok := new(big.Int).SetString(c.Query("amount"), 10)
	if !ok || amount.Sign() <= 0 {
		badRequest(c, "amount must be a positive integer in base units")
		return
	}
	slippage := DefaultSlippagePercent
	if v := c.Query("slippage"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			badRequest(c, "slippage must be a percentage between 0 and 100")
			return
		}
		slippage = f
	}
	var gasPrice *big.Int
	if v := c.Query("gasPrice"); v != "" {
		gp, ok := new(big.Int).SetString(v, 10)
		if !ok || gp.Sign() < 0 {
			badRequest(c, "invalid gasPrice")
			return
		}
		gasPrice = gp
	}
	var user *common.Address
	if v := c.Query("user"); v != "" {
		addr, ok := currency.ParseAddress(v)
		if !ok {
			badRequest(c, "invalid user address")
			return
		}
		user = &addr
	}

	pair, err := q.ResolveAll(ctx, inAddr, outAddr)
	if err != nil {
		s.resolveError(c, err)
		return
	}
	in, out := pair[0], pair[1]

	res, err := q.Quote(ctx, aggregator.Request{
		In:                   in,
		Out:                  out,
		AmountIn:             amount,
		SlippageLimitPercent: slippage,
		GasPrice:             gasPrice,
		User:                 user,
	})
	switch {
	case err == nil:
	case errors.Is(err, aggregator.ErrInvalidAmount):
		badRequest(c, err.Error())
		return
	case errors.Is(err, quote.ErrNoQuotes):
		c.JSON(http.StatusBadGateway, gin.H{"error": "no quotes available"})
		return
	default:
		s.upstreamError(c, "quote", err)
		return
	}

	resp := quoteResponse{Best: viewOf(res.Best), Ranking: res.Ranking}
	resp.All = make([]quoteView, 0, len(res.All))
	for _, qt := range res.All {
		resp.All = append(resp.All, viewOf(qt))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	q, ok := s.chainQuotes(c)
	if !ok || !s.leaderboardEnabled(c) {
		return
	}
	entries, err := s.board.Leaderboard(c.Request.Context(), q.Chain().ID)
	if err != nil {
		s.log.Error("leaderboard query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	s.cacheHeaders(c)
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (s *Server) handleUserVolume(c *gin.Context) {
	q, ok := s.chainQuotes(c)
	if !ok || !s.leaderboardEnabled(c) {
		return
	}
	addr, ok := currency.ParseAddress(c.Param("address"))
	if !ok {
		badRequest(c, "invalid address")
		return
	}
	v, err := s.board.UserVolume(c.Request.Context(), q.Chain().ID, addr)
	if err != nil {
		s.log.Error("volume query failed", "address", addr.Hex(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "volume unavailable"})
		return
	}
	s.cacheHeaders(c)
	c.JSON(http.StatusOK, v)
}

func (s *Server) leaderboardEnabled(c *gin.Context) bool {
	if s.board == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "leaderboard not configured"})
		return false
	}
	return true
}

func (s *Server) cacheHeaders(c *gin.Context) {
	maxAge := int(s.board.TTL() / time.Second)
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))
}

func (s *Server) resolveError(c *gin.Context, err error) {
	if errors.Is(err, quote.ErrUnknownCurrency) {
		badRequest(c, err.Error())
		return
	}
	s.upstreamError(c, "resolve currency", err)
}

func (s *Server) upstreamError(c *gin.Context, what string, err error) {
	s.log.Warn(what+" failed", "error", err)
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": what + " timed out"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": what + " failed"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
