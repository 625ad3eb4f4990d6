package openocean

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
)

// Timeout bounds every OpenOcean call.
const Timeout = 4 * time.Second

// NativeAddress is how OpenOcean names the chain's native token.
var NativeAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

const (
	minSlippage = 0.01
	maxSlippage = 50
)

// Aggregator quotes through the OpenOcean v3 API.
type Aggregator struct {
	client   *Client
	chain    chain.Chain
	exchange common.Address
	timeout  time.Duration
}

func New(client *Client, c chain.Chain, exchange common.Address) *Aggregator {
	return &Aggregator{client: client, chain: c, exchange: exchange, timeout: Timeout}
}

func (a *Aggregator) Name() string             { return "OpenOcean" }
func (a *Aggregator) Contract() common.Address { return a.exchange }
func (a *Aggregator) Chain() chain.Chain       { return a.chain }

func (a *Aggregator) Currencies(ctx context.Context) ([]currency.Currency, error) {
	tokens, err := a.tokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]currency.Currency, 0, len(tokens))
	for _, t := range tokens {
		addr, ok := fromWire(t.Address)
		if !ok {
			continue
		}
		out = append(out, currency.Currency{
			Address:  addr,
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Icon:     t.Icon,
		})
	}
	return out, nil
}

func (a *Aggregator) Prices(ctx context.Context) (currency.Prices, error) {
	tokens, err := a.tokens(ctx)
	if err != nil {
		return nil, err
	}
	out := currency.Prices{}
	for _, t := range tokens {
		addr, ok := fromWire(t.Address)
		if !ok || t.USD == "" {
			continue
		}
		p, err := t.USD.Float64()
		if err != nil {
			continue
		}
		out.Set(addr, p)
	}
	return out, nil
}

func (a *Aggregator) tokens(ctx context.Context) ([]Token, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	tokens, err := a.client.TokenList(ctx, a.chain.ID)
	if err != nil {
		return nil, fmt.Errorf("openocean token list: %w", err)
	}
	return tokens, nil
}

func (a *Aggregator) Quote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
	if err := req.Validate(); err != nil {
		return aggregator.Quote{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := QuoteParams{
		InTokenAddress:  toWire(req.In.Address),
		OutTokenAddress: toWire(req.Out.Address),
		Amount:          currency.FormatUnits(req.AmountIn, req.In.Decimals),
		GasPrice:        currency.FormatUnits(req.GasPriceOrZero(), 9),
		Slippage:        strconv.FormatFloat(aggregator.ClampSlippage(req.SlippageLimitPercent, minSlippage, maxSlippage), 'f', -1, 64),
	}
	var (
		data *QuoteData
		err  error
	)
	if req.User == nil {
		data, err = a.client.Quote(ctx, a.chain.ID, params)
	} else {
		params.Account = req.User.Hex()
		data, err = a.client.SwapQuote(ctx, a.chain.ID, params)
	}
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("openocean quote: %w", err)
	}

	amountOut, ok := new(big.Int).SetString(data.OutAmount, 10)
	if !ok {
		return aggregator.Quote{}, fmt.Errorf("openocean: bad outAmount %q", data.OutAmount)
	}
	gas, err := parseGas(data.EstimatedGas)
	if err != nil {
		return aggregator.Quote{}, err
	}
	q := aggregator.Quote{
		AmountIn:   new(big.Int).Set(req.AmountIn),
		AmountOut:  amountOut,
		GasLimit:   gas,
		Aggregator: a,
	}
	if req.User == nil {
		return q, nil
	}

	calldata, err := hexutil.Decode(data.Data)
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("openocean: bad calldata: %w", err)
	}
	value := new(big.Int)
	if data.Value != "" {
		if _, ok := value.SetString(data.Value.String(), 10); !ok {
			return aggregator.Quote{}, fmt.Errorf("openocean: bad value %q", data.Value)
		}
	}
	to := a.exchange
	if common.IsHexAddress(data.To) {
		to = common.HexToAddress(data.To)
	}
	q.Transaction = &aggregator.Transaction{
		Data:     calldata,
		To:       to,
		Value:    value,
		Gas:      gas,
		GasPrice: req.GasPriceOrZero(),
		From:     *req.User,
	}
	return q, nil
}

func parseGas(n json.Number) (uint64, error) {
	if n == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("openocean: bad estimatedGas %q", n)
	}
	return uint64(f), nil
}

func toWire(a common.Address) string {
	if a == currency.Native {
		return NativeAddress.Hex()
	}
	return a.Hex()
}

func fromWire(s string) (common.Address, bool) {
	addr, ok := currency.ParseAddress(s)
	if !ok {
		return common.Address{}, false
	}
	if addr == NativeAddress {
		return currency.Native, true
	}
	return addr, true
}
