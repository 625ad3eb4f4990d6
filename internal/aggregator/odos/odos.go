package odos

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"swapquote/internal/aggregator"
	"swapquote/internal/chain"
	"swapquote/internal/currency"
)

// Timeout bounds every Odos call.
const Timeout = 2 * time.Second

var errEmptyRoute = errors.New("odos: empty route")

// Aggregator quotes through the Odos smart order router.
type Aggregator struct {
	client       *Client
	chain        chain.Chain
	router       common.Address
	referralCode uint64
	timeout      time.Duration
}

func New(client *Client, c chain.Chain, router common.Address, referralCode uint64) *Aggregator {
	return &Aggregator{client: client, chain: c, router: router, referralCode: referralCode, timeout: Timeout}
}

func (a *Aggregator) Name() string             { return "Odos" }
func (a *Aggregator) Contract() common.Address { return a.router }
func (a *Aggregator) Chain() chain.Chain       { return a.chain }

func (a *Aggregator) Currencies(ctx context.Context) ([]currency.Currency, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.Tokens(ctx, a.chain.ID)
	if err != nil {
		return nil, fmt.Errorf("odos tokens: %w", err)
	}
	out := make([]currency.Currency, 0, len(resp.TokenMap))
	for key, info := range resp.TokenMap {
		addr, ok := currency.ParseAddress(key)
		if !ok {
			continue
		}
		out = append(out, currency.Currency{Address: addr, Name: info.Name, Symbol: info.Symbol, Decimals: info.Decimals})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (a *Aggregator) Prices(ctx context.Context) (currency.Prices, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.TokenPrices(ctx, a.chain.ID)
	if err != nil {
		return nil, fmt.Errorf("odos prices: %w", err)
	}
	out := currency.Prices{}
	for addr, p := range resp.TokenPrices {
		out.SetHex(addr, p)
	}
	return out, nil
}

func (a *Aggregator) Quote(ctx context.Context, req aggregator.Request) (aggregator.Quote, error) {
	if err := req.Validate(); err != nil {
		return aggregator.Quote{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body := QuoteRequest{
		ChainID:              a.chain.ID,
		InputTokens:          []TokenAmount{{TokenAddress: req.In.Key(), Amount: req.AmountIn.String()}},
		OutputTokens:         []TokenProportion{{TokenAddress: req.Out.Key(), Proportion: 1}},
		GasPrice:             currency.ToFloat(req.GasPriceOrZero(), 9),
		SlippageLimitPercent: aggregator.ClampSlippage(req.SlippageLimitPercent, 0, 100),
		ReferralCode:         a.referralCode,
		DisableRFQs:          true,
		Compact:              true,
	}
	if req.User != nil {
		body.UserAddr = req.User.Hex()
	}
	resp, err := a.client.Quote(ctx, body)
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("odos quote: %w", err)
	}
	if len(resp.OutAmounts) == 0 {
		return aggregator.Quote{}, errEmptyRoute
	}
	amountOut, ok := new(big.Int).SetString(resp.OutAmounts[0], 10)
	if !ok {
		return aggregator.Quote{}, fmt.Errorf("odos: bad outAmount %q", resp.OutAmounts[0])
	}
	gasLimit, err := gasUnits(resp.GasEstimate)
	if err != nil {
		return aggregator.Quote{}, err
	}
	q := aggregator.Quote{
		AmountIn:   new(big.Int).Set(req.AmountIn),
		AmountOut:  amountOut,
		GasLimit:   gasLimit,
		Aggregator: a,
	}
	if req.User == nil {
		return q, nil
	}

	asm, err := a.client.Assemble(ctx, AssembleRequest{UserAddr: req.User.Hex(), PathID: resp.PathID})
	if err != nil {
		return aggregator.Quote{}, fmt.Errorf("odos assemble: %w", err)
	}
	tx, err := toTransaction(asm.Transaction, q.GasLimit, req)
	if err != nil {
		return aggregator.Quote{}, err
	}
	q.GasLimit = tx.Gas
	q.Transaction = tx
	return q, nil
}

func toTransaction(t AssembledTransaction, gasEstimate uint64, req aggregator.Request) (*aggregator.Transaction, error) {
	data, err := hexutil.Decode(t.Data)
	if err != nil {
		return nil, fmt.Errorf("odos: bad calldata: %w", err)
	}
	if !common.IsHexAddress(t.To) {
		return nil, fmt.Errorf("odos: bad to %q", t.To)
	}
	value := new(big.Int)
	if t.Value != "" {
		if _, ok := value.SetString(t.Value, 10); !ok {
			return nil, fmt.Errorf("odos: bad value %q", t.Value)
		}
	}
	if t.Gas < 0 {
		return nil, fmt.Errorf("odos: bad gas %d", t.Gas)
	}
	gas := gasEstimate
	if t.Gas > 0 {
		gas = uint64(t.Gas)
	}
	return &aggregator.Transaction{
		Data:     data,
		To:       common.HexToAddress(t.To),
		Value:    value,
		Gas:      gas,
		GasPrice: req.GasPriceOrZero(),
		From:     *req.User,
	}, nil
}

// gasUnits converts Odos' float gas estimate, rejecting values that have no
// uint64 meaning.
func gasUnits(f float64) (uint64, error) {
	if math.IsNaN(f) || f < 0 || f >= math.MaxUint64 {
		return 0, fmt.Errorf("odos: bad gasEstimate %v", f)
	}
	return uint64(f), nil
}
