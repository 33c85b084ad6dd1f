package domain

import "time"

// VoteAction is the action a signal source recommends for a market.
type VoteAction string

const (
	ActionBuyYes  VoteAction = "buy_yes"
	ActionBuyNo   VoteAction = "buy_no"
	ActionBuyBoth VoteAction = "buy_both"
	ActionSkip    VoteAction = "skip"
)

// OpportunityType distinguishes why a market is being evaluated.
type OpportunityType string

const (
	OpportunityDirectional OpportunityType = "directional"
	OpportunityArbitrage   OpportunityType = "arbitrage"
)

// Vote is a single signal source's opinion on one market. Votes are produced
// fresh on every decision call and are not persisted by the core.
type Vote struct {
	Source     string
	Action     VoteAction
	Confidence float64 // 0-100
	Reasoning  string
}

// Decision is the aggregated ensemble output for one market. Consensus and
// confidence are independent axes; both must clear their thresholds before a
// trade executes.
type Decision struct {
	Action     VoteAction
	Confidence float64 // 0-100, weighted mean of agreeing votes
	Consensus  float64 // 0-100, weighted fraction of sources agreeing
	Votes      []Vote
	Reasoning  string
	DecidedAt  time.Time
}

// MarketContext is the per-market input handed to signal sources. Sources see
// a read-only view; they never mutate pipeline state.
type MarketContext struct {
	Snapshot    MarketSnapshot
	Opportunity OpportunityType
	SpotPrice   float64 // latest underlying spot price, 0 when unknown
	SpotChange  float64 // fractional spot change over the signal window
}
