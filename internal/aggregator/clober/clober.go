package clober

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
	"swapquote/internal/logger"
	"swapquote/internal/onchain"
)

const (
	// WrapGas is charged for deposit/withdraw on the wrapped native token.
	WrapGas uint64 = 100_000
	// DefaultSpendGas is used when a market order cannot be estimated.
	DefaultSpendGas uint64 = 500_000

	maxSlippage   = 100.0
	orderDeadline = time.Hour
	slippageBasis = 1_000_000
)

var errNoBook = errors.New("no book for pair")

// Config wires a Clober deployment on one chain.
type Config struct {
	Chain      chain.Chain
	Controller common.Address
	BookViewer common.Address
	Books      BookSource
	RPC        onchain.Caller
	Logger     *logger.Logger
}

// Aggregator quotes directly against Clober order books.
type Aggregator struct {
	cfg Config
	log *logger.Logger
	now func() time.Time
}

func New(cfg Config) *Aggregator {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{cfg: cfg, log: log.With("clober"), now: time.Now}
}

func (a *Aggregator) Name() string             { return "Clober" }
func (a *Aggregator) Contract() common.Address { return a.cfg.Controller }
func (a *Aggregator) Chain() chain.Chain       { return a.cfg.Chain }

// Currencies lists every base and quote token that appears in a book.
func (a *Aggregator) Currencies(ctx context.Context) ([]currency.Currency, error) {
	books, err := a.cfg.Books.Books(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[common.Address]bool)
	var out []currency.Currency
	for _, b := range books {
		for _, c := range []currency.Currency{b.Base, b.Quote} {
			if seen[c.Address] {
				continue
			}
			seen[c.Address] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Prices is always empty; pricing comes from the HTTP aggregators.
func (a *Aggregator) Prices(context.Context) (currency.Prices, error) {
	return currency.Prices{}, nil
}

// Quote never fails for liquidity reasons: any problem building the order
// yields a zero-output quote with NoRoute set.
func (a *Aggregator) Quote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
	if err := req.Validate(); err != nil {
		return aggregator.Quote{}, err
	}
	if a.cfg.Chain.IsWrapPair(req.In.Address, req.Out.Address) {
		return a.wrapQuote(req)
	}
	q, err := a.marketQuote(ctx, req)
	if err != nil {
		a.log.Debug("no route", "in", req.In.Key(), "out", req.Out.Key(), "error", err)
		return aggregator.Quote{
			AmountIn:   new(big.Int).Set(req.AmountIn),
			AmountOut:  new(big.Int),
			Aggregator: a,
			NoRoute:    true,
		}, nil
	}
	return q, nil
}

func (a *Aggregator) wrapQuote(req aggregator.Request) (aggregator.Quote, error) {
	q := aggregator.Quote{
		AmountIn:   new(big.Int).Set(req.AmountIn),
		AmountOut:  new(big.Int).Set(req.AmountIn),
		GasLimit:   WrapGas,
		Aggregator: a,
	}
	if req.User == nil {
		return q, nil
	}

	var (
		data  []byte
		err   error
		value = new(big.Int)
	)
	if req.In.IsNative() {
		data, err = onchain.WrappedNativeABI.Pack("deposit")
		value.Set(req.AmountIn)
	} else {
		data, err = onchain.WrappedNativeABI.Pack("withdraw", req.AmountIn)
	}
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("pack wrap: %w", err)
	}
	q.Transaction = &aggregator.Transaction{
		Data:     data,
		To:       a.cfg.Chain.WrappedNative,
		Value:    value,
		Gas:      WrapGas,
		GasPrice: req.GasPriceOrZero(),
		From:     *req.User,
	}
	return q, nil
}

func (a *Aggregator) marketQuote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
	book, err := a.findBook(ctx, req.In.Address, req.Out.Address)
	if err != nil {
		return aggregator.Quote{}, err
	}
	params := onchain.SpendOrderParams{
		ID:             book.ID,
		LimitPrice:     new(big.Int),
		BaseAmount:     new(big.Int).Set(req.AmountIn),
		MinQuoteAmount: new(big.Int),
		HookData:       []byte{},
	}
	out, err := onchain.Call(ctx, a.cfg.RPC, a.cfg.BookViewer, onchain.BookViewerABI, "getExpectedOutput", params)
	if err != nil {
		return aggregator.Quote{}, err
	}
	if len(out) != 2 {
		return aggregator.Quote{}, fmt.Errorf("getExpectedOutput: %d values", len(out))
	}
	taken, ok := out[0].(*big.Int)
	if !ok || taken.Sign() <= 0 {
		return aggregator.Quote{}, errors.New("book has no liquidity")
	}

	q := aggregator.Quote{
		AmountIn:   new(big.Int).Set(req.AmountIn),
		AmountOut:  taken,
		GasLimit:   DefaultSpendGas,
		Aggregator: a,
	}
	if req.User == nil {
		return q, nil
	}

	slippage := aggregator.ClampSlippage(req.SlippageLimitPercent, 0, maxSlippage)
	params.MinQuoteAmount = minOut(taken, slippage)
	deadline := uint64(a.now().Add(orderDeadline).Unix())
	data, err := onchain.ControllerABI.Pack("spend",
		[]onchain.SpendOrderParams{params},
		[]common.Address{req.In.Address, req.Out.Address},
		[]onchain.ERC20PermitParams{},
		deadline,
	)
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("pack spend: %w", err)
	}
	value := new(big.Int)
	if req.In.IsNative() {
		value.Set(req.AmountIn)
	}
	to := a.cfg.Controller
	gas, err := a.cfg.RPC.EstimateGas(ctx, ethereum.CallMsg{From: *req.User, To: &to, Value: value, Data: data})
	if err != nil {
		// Typically a missing allowance; the wallet re-estimates before signing.
		a.log.Debug("estimate gas failed", "error", err)
		gas = DefaultSpendGas
	}
	q.GasLimit = gas
	q.Transaction = &aggregator.Transaction{
		Data:     data,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: req.GasPriceOrZero(),
		From:     *req.User,
	}
	return q, nil
}

func (a *Aggregator) findBook(ctx context.Context, in, out common.Address) (Book, error) {
	books, err := a.cfg.Books.Books(ctx)
	if err != nil {
		return Book{}, err
	}
	for _, b := range books {
		if b.Base.Address == in && b.Quote.Address == out {
			return b, nil
		}
	}
	return Book{}, errNoBook
}

// minOut applies a slippage percentage to an expected output.
func minOut(expected *big.Int, slippagePercent float64) *big.Int {
	keep := int64(math.Round((100 - slippagePercent) / 100 * slippageBasis))
	v := new(big.Int).Mul(expected, big.NewInt(keep))
	return v.Quo(v, big.NewInt(slippageBasis))
}
