package quote

import (
	"math/big"

	"swapquote/internal/aggregator"
	"swapquote/internal/currency"
)

// Ranking names the rule that picked Result.Best.
type Ranking string

const (
	// RankedByUSD means the highest net USD output won.
	RankedByUSD Ranking = "usd"
	// RankedByAmount means prices were missing and the largest raw output won.
	RankedByAmount Ranking = "amount"
)

// Result is the outcome of a selection.
type Result struct {
	Best    aggregator.Quote   `json:"best"`
	All     []aggregator.Quote `json:"all"`
	Ranking Ranking            `json:"ranking"`
}

// Select annotates every quote with GasUSD and NetAmountOutUSD and picks the
// best one.
//
// Quotes are ranked by net USD output when both the output and the native
// price are known. Otherwise they fall back to a ranking by raw AmountOut.
// A USD winner with a net of exactly zero gives way to the fallback winner
// when there is one. Ties keep the earlier quote.
func Select(quotes []aggregator.Quote, out, native currency.Currency, prices currency.Prices, gasPrice *big.Int) (Result, error) {
	if len(quotes) == 0 {
		return Result{}, ErrNoQuotes
	}
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	outPrice, outKnown := prices.Get(out.Address)
	nativePrice, nativeKnown := prices.Get(native.Address)

	all := make([]aggregator.Quote, len(quotes))
	primary, fallback := -1, -1
	for i, q := range quotes {
		if q.AmountOut == nil {
			q.AmountOut = new(big.Int)
		}
		gasWei := new(big.Int).Mul(new(big.Int).SetUint64(q.GasLimit), gasPrice)
		q.GasUSD = currency.ToFloat(gasWei, native.Decimals) * nativePrice
		amountOutUSD := currency.ToFloat(q.AmountOut, out.Decimals) * outPrice
		q.NetAmountOutUSD = max(0, amountOutUSD-q.GasUSD)
		all[i] = q

		if outKnown && nativeKnown {
			if primary < 0 || q.NetAmountOutUSD > all[primary].NetAmountOutUSD {
				primary = i
			}
			continue
		}
		if fallback < 0 || q.AmountOut.Cmp(all[fallback].AmountOut) > 0 {
			fallback = i
		}
	}

	res := Result{All: all}
	switch {
	case primary >= 0 && (all[primary].NetAmountOutUSD != 0 || fallback < 0):
		res.Best, res.Ranking = all[primary], RankedByUSD
	default:
		res.Best, res.Ranking = all[fallback], RankedByAmount
	}
	return res, nil
}
