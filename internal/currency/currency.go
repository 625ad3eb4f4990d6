package currency

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Native is the address used for a chain's native token.
var Native = common.Address{}

// Currency is a tradable token. Address is the identity; two currencies with
// the same address are the same currency regardless of metadata.
type Currency struct {
	Address    common.Address `json:"address"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	Decimals   uint8          `json:"decimals"`
	Icon       string         `json:"icon,omitempty"`
	IsVerified bool           `json:"isVerified,omitempty"`
}

// New builds a Currency from a hex address in any case.
func New(address, name, symbol string, decimals uint8) Currency {
	return Currency{
		Address:  common.HexToAddress(address),
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	}
}

// IsNative reports whether c is the chain's native token.
func (c Currency) IsNative() bool { return c.Address == Native }

// Key returns the checksummed address used as a map key.
func (c Currency) Key() string { return c.Address.Hex() }

// Equal compares by address only.
func (c Currency) Equal(o Currency) bool { return c.Address == o.Address }

func (c Currency) String() string {
	if c.Symbol != "" {
		return c.Symbol
	}
	return c.Address.Hex()
}

// ParseAddress accepts a 0x-prefixed hex address in any case.
func ParseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// ToFloat converts a raw token amount into its decimal-adjusted value.
func ToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).InexactFloat64()
}

// FormatUnits renders a raw amount in decimal-adjusted form without trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseUnits converts a decimal string like "1.5" into a raw amount.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).BigInt(), nil
}
