package currency

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Prices maps a currency address to its USD price. Every entry is stored
// under the checksummed address and again under the lowercase address.
type Prices map[string]float64

// Set stores p for addr under both key forms.
func (ps Prices) Set(addr common.Address, p float64) {
	key := addr.Hex()
	ps[key] = p
	ps[strings.ToLower(key)] = p
}

// SetHex is Set for a hex string; invalid addresses are ignored.
func (ps Prices) SetHex(addr string, p float64) {
	if a, ok := ParseAddress(addr); ok {
		ps.Set(a, p)
	}
}

// Get returns the price for addr. A missing or non-positive price is unknown.
func (ps Prices) Get(addr common.Address) (float64, bool) {
	key := addr.Hex()
	p, ok := ps[key]
	if !ok {
		p, ok = ps[strings.ToLower(key)]
	}
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}

// Merge copies every entry of o into ps, overwriting existing ones. When o
// holds one address under several spellings, the checksummed key wins over
// the lowercase one, which wins over any other.
func (ps Prices) Merge(o Prices) {
	for rank := 0; rank <= 2; rank++ {
		for k, v := range o {
			a, ok := ParseAddress(k)
			if !ok {
				if rank == 0 {
					ps[k] = v
				}
				continue
			}
			if keyRank(k, a) == rank {
				ps.Set(a, v)
			}
		}
	}
}

func keyRank(k string, a common.Address) int {
	switch hex := a.Hex(); k {
	case hex:
		return 2
	case strings.ToLower(hex):
		return 1
	}
	return 0
}
