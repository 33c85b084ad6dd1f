package domain

import "time"

// PositionState tracks the two-leg hedge lifecycle for one market.
type PositionState string

const (
	PositionNone     PositionState = "none"
	PositionLeg1Open PositionState = "leg1_open"
	PositionHedged   PositionState = "hedged"
	PositionExpired  PositionState = "expired"
)

// Position is the hedge-leg state for a single market. A market holds at most
// one Position at a time. Size fields always reflect the actually filled
// order size, never the requested size.
type Position struct {
	MarketID    string
	Asset       string
	Strategy    string
	State       PositionState
	Leg1Side    Side
	Leg1Price   float64
	Leg1Size    float64
	Leg1TokenID string
	OpenedAt    time.Time

	// Leg 2 fields are populated on the LEG1_OPEN -> HEDGED transition.
	Leg2Price float64
	Leg2Size  float64
	HedgedAt  *time.Time
}

// CombinedEntryCost is the per-share cost of both legs. For a valid hedge it
// is always below 1.0.
func (p Position) CombinedEntryCost() float64 {
	return p.Leg1Price + p.Leg2Price
}

// GuaranteedProfit is the locked-in per-share profit of a hedged position at
// resolution, regardless of outcome. Zero unless the position is HEDGED.
func (p Position) GuaranteedProfit() float64 {
	if p.State != PositionHedged {
		return 0
	}
	return 1.0 - p.CombinedEntryCost()
}

// TradeOutcome is a settled trade used for rolling risk statistics and the
// historical win-rate tracker.
type TradeOutcome struct {
	ID         int64
	MarketID   string
	Asset      string
	Side       Side
	Strategy   string
	EntryPrice float64
	Size       float64
	PnL        float64
	Won        bool
	SettledAt  time.Time
}
