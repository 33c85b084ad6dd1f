package domain

import "time"

// Side is one leg of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other side of a binary market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// MarketSnapshot is one market's state as observed at a single scan tick.
// Snapshots are immutable; each tick replaces them wholesale.
type MarketSnapshot struct {
	MarketID     string
	Question     string
	Asset        string // underlying symbol, e.g. "BTC"
	YesPrice     float64
	NoPrice      float64
	YesTokenID   string
	NoTokenID    string
	YesLiquidity float64
	NoLiquidity  float64
	Volume24h    float64
	EndTime      time.Time
	FetchedAt    time.Time
}

// TokenID returns the outcome token for the given side.
func (m MarketSnapshot) TokenID(side Side) string {
	if side == SideYes {
		return m.YesTokenID
	}
	return m.NoTokenID
}

// Price returns the current price for the given side.
func (m MarketSnapshot) Price(side Side) float64 {
	if side == SideYes {
		return m.YesPrice
	}
	return m.NoPrice
}

// CombinedCost is the cost of buying one share of each outcome. Values below
// 1.0 are the arbitrage signal; the snapshot never assumes YES+NO == 1.
func (m MarketSnapshot) CombinedCost() float64 {
	return m.YesPrice + m.NoPrice
}

// MinutesToResolution returns the minutes remaining until the market resolves.
func (m MarketSnapshot) MinutesToResolution(now time.Time) float64 {
	return m.EndTime.Sub(now).Minutes()
}

// Resolution is an asynchronous market-resolved event from the settlement
// collaborator, carrying the winning side.
type Resolution struct {
	MarketID   string
	Winner     Side
	ResolvedAt time.Time
}
