package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// RejectReason classifies why the execution gateway declined an order. Each
// reason is a distinct taxonomy entry so accounting never has to parse
// free-text messages.
type RejectReason string

const (
	RejectNone                RejectReason = ""
	RejectInsufficientBalance RejectReason = "insufficient_balance"
	RejectBelowMinimumSize    RejectReason = "below_minimum_size"
	RejectInvalidSignature    RejectReason = "invalid_signature"
	RejectMarketClosed        RejectReason = "market_closed"
	RejectInvalidOrder        RejectReason = "invalid_order"
	RejectUnknown             RejectReason = "unknown"
)

// Order is a request handed to the execution gateway. Signing is the
// gateway's concern; the decision pipeline never touches keys.
type Order struct {
	ID        string
	MarketID  string
	TokenID   string
	Side      OrderSide
	Price     float64
	Shares    float64
	Notional  float64 // Price * Shares at submission time
	Strategy  string
	CreatedAt time.Time
}

// OrderResult is the gateway's response to a submitted order. FilledShares is
// what actually filled, which downstream accounting must use instead of the
// requested size.
type OrderResult struct {
	Success      bool
	OrderID      string
	FilledShares float64
	FilledPrice  float64
	Reason       RejectReason
	Message      string
	Retryable    bool
}

// SlippageEstimate is the order-book collaborator's projection for a desired
// size. HasData is false when the book is empty or unavailable, which is
// degraded data rather than an error.
type SlippageEstimate struct {
	AvgPrice    float64
	SlippagePct float64 // fractional, 0.02 = 2%
	HasData     bool
}
