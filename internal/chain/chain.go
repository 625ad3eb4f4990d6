package chain

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"swapquote/internal/currency"
)

// Chain describes an EVM network the aggregators operate on.
type Chain struct {
	ID             uint64            `json:"id"`
	Name           string            `json:"name"`
	NativeCurrency currency.Currency `json:"nativeCurrency"`
	WrappedNative  common.Address    `json:"wrappedNative"`
}

const (
	Ethereum        uint64 = 1
	Base            uint64 = 8453
	ArbitrumSepolia uint64 = 421614
)

var ether = currency.Currency{Address: currency.Native, Name: "Ether", Symbol: "ETH", Decimals: 18}

var registry = map[uint64]Chain{
	Ethereum: {
		ID:             Ethereum,
		Name:           "Ethereum",
		NativeCurrency: ether,
		WrappedNative:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	},
	Base: {
		ID:             Base,
		Name:           "Base",
		NativeCurrency: ether,
		WrappedNative:  common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
	ArbitrumSepolia: {
		ID:             ArbitrumSepolia,
		Name:           "Arbitrum Sepolia",
		NativeCurrency: ether,
		WrappedNative:  common.HexToAddress("0x980B62Da83eFf3D4576C647993b0c1D7faf17c73"),
	},
}

// ByID returns the registered chain with the given id.
func ByID(id uint64) (Chain, error) {
	c, ok := registry[id]
	if !ok {
		return Chain{}, fmt.Errorf("unsupported chain %d", id)
	}
	return c, nil
}

// All returns every registered chain ordered by id.
func All() []Chain {
	out := make([]Chain, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsWrapPair reports whether in/out is a native <-> wrapped-native conversion.
func (c Chain) IsWrapPair(in, out common.Address) bool {
	return (in == currency.Native && out == c.WrappedNative) ||
		(in == c.WrappedNative && out == currency.Native)
}

// WrappedCurrency is the wrapped-native token as a Currency.
func (c Chain) WrappedCurrency() currency.Currency {
	return currency.Currency{
		Address:  c.WrappedNative,
		Name:     "Wrapped " + c.NativeCurrency.Name,
		Symbol:   "W" + c.NativeCurrency.Symbol,
		Decimals: c.NativeCurrency.Decimals,
	}
}
