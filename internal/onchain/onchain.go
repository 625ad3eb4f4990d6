package onchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"swapquote/internal/currency"
)

// Multicall3 is deployed at the same address on every supported chain.
var Multicall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// Caller is the JSON-RPC surface used for reads and gas estimation.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return c, nil
}

// SpendOrderParams is a single market order against one book.
type SpendOrderParams struct {
	ID             *big.Int `abi:"id"`
	LimitPrice     *big.Int `abi:"limitPrice"`
	BaseAmount     *big.Int `abi:"baseAmount"`
	MinQuoteAmount *big.Int `abi:"minQuoteAmount"`
	HookData       []byte   `abi:"hookData"`
}

type PermitSignature struct {
	Deadline *big.Int `abi:"deadline"`
	V        uint8    `abi:"v"`
	R        [32]byte `abi:"r"`
	S        [32]byte `abi:"s"`
}

type ERC20PermitParams struct {
	Token        common.Address  `abi:"token"`
	PermitAmount *big.Int        `abi:"permitAmount"`
	Signature    PermitSignature `abi:"signature"`
}

// Call3 and Call3Result mirror Multicall3's aggregate3 tuples.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type Call3Result struct {
	Success    bool
	ReturnData []byte
}

// Call packs method+args for contract, performs eth_call and unpacks the result.
func Call(ctx context.Context, c Caller, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract.Hex(), err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// Aggregate3 batches calls through Multicall3 in a single eth_call.
func Aggregate3(ctx context.Context, c Caller, calls []Call3) ([]Call3Result, error) {
	out, err := Call(ctx, c, Multicall3, Multicall3ABI, "aggregate3", calls)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("aggregate3: unexpected output length %d", len(out))
	}
	results := *abi.ConvertType(out[0], new([]Call3Result)).(*[]Call3Result)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("aggregate3: %d results for %d calls", len(results), len(calls))
	}
	return results, nil
}

var erc20Methods = []string{"name", "symbol", "decimals"}

// FetchCurrencies reads name/symbol/decimals for every address with one
// multicall. The native address resolves to native without any call.
func FetchCurrencies(ctx context.Context, c Caller, native currency.Currency, addrs []common.Address) ([]currency.Currency, error) {
	calls := make([]Call3, 0, len(addrs)*len(erc20Methods))
	offset := make([]int, len(addrs))
	for i, a := range addrs {
		offset[i] = len(calls)
		if a == currency.Native {
			continue
		}
		for _, m := range erc20Methods {
			data, err := ERC20ABI.Pack(m)
			if err != nil {
				return nil, fmt.Errorf("pack %s: %w", m, err)
			}
			calls = append(calls, Call3{Target: a, AllowFailure: true, CallData: data})
		}
	}
	var results []Call3Result
	if len(calls) > 0 {
		var err error
		if results, err = Aggregate3(ctx, c, calls); err != nil {
			return nil, err
		}
	}

	out := make([]currency.Currency, 0, len(addrs))
	for i, a := range addrs {
		if a == currency.Native {
			out = append(out, native)
			continue
		}
		r := results[offset[i] : offset[i]+len(erc20Methods)]
		name, err := decodeString("name", r[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Hex(), err)
		}
		symbol, err := decodeString("symbol", r[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Hex(), err)
		}
		if !r[2].Success {
			return nil, fmt.Errorf("%s: decimals reverted", a.Hex())
		}
		dec, err := ERC20ABI.Unpack("decimals", r[2].ReturnData)
		if err != nil || len(dec) != 1 {
			return nil, fmt.Errorf("%s: unpack decimals: %v", a.Hex(), err)
		}
		out = append(out, currency.Currency{
			Address:  a,
			Name:     name,
			Symbol:   symbol,
			Decimals: dec[0].(uint8),
		})
	}
	return out, nil
}

// FetchCurrency is FetchCurrencies for a single address.
func FetchCurrency(ctx context.Context, c Caller, native currency.Currency, addr common.Address) (currency.Currency, error) {
	cs, err := FetchCurrencies(ctx, c, native, []common.Address{addr})
	if err != nil {
		return currency.Currency{}, err
	}
	return cs[0], nil
}

var errReverted = errors.New("reverted")

// decodeString handles both string and legacy bytes32 return values.
func decodeString(method string, r Call3Result) (string, error) {
	if !r.Success {
		return "", fmt.Errorf("%s %w", method, errReverted)
	}
	if vals, err := ERC20ABI.Unpack(method, r.ReturnData); err == nil && len(vals) == 1 {
		return vals[0].(string), nil
	}
	if len(r.ReturnData) == 32 {
		return strings.TrimSpace(string(bytes.TrimRight(r.ReturnData, "\x00"))), nil
	}
	return "", fmt.Errorf("unpack %s: unexpected return data", method)
}
