// Package executor turns approved trade intents into venue orders: sizing to
// the venue minimum, submitting with retries and reporting the actual fill.
package executor

import "math"

// SizeOrder converts a desired notional at a price into a share count that
// clears the venue's minimum order value. Shares are quantized to two decimal
// places, which can round the notional under the minimum; a single extra tick
// of a hundredth of a share fixes that. A non-positive price sizes to zero.
func SizeOrder(price, desiredNotional, minNotional float64) (shares, notional float64) {
	if price <= 0 {
		return 0, 0
	}

	minShares := math.Ceil(minNotional/price*100) / 100
	shares = math.Max(minShares, desiredNotional/price)
	shares = math.Round(shares*100) / 100

	if shares*price < minNotional {
		shares = math.Round((shares+0.01)*100) / 100
	}
	return shares, shares * price
}
