package domain

import (
	"context"
	"time"
)

// MarketProvider returns the active market snapshots for one scan tick.
// Implementations skip markets with unparsable price or token fields rather
// than failing the whole fetch.
type MarketProvider interface {
	ActiveMarkets(ctx context.Context) ([]MarketSnapshot, error)
}

// BookProvider projects slippage for a desired size from the live order book.
// A missing book yields an estimate with HasData=false, not an error.
type BookProvider interface {
	EstimateSlippage(ctx context.Context, tokenID string, side OrderSide, shares float64) (SlippageEstimate, error)
}

// ExecutionGateway submits orders to the exchange and reports what actually
// filled. Rejections come back as a typed reason on the result, not an error;
// errors are reserved for transport failures.
type ExecutionGateway interface {
	SubmitOrder(ctx context.Context, order Order) (OrderResult, error)
}

// Source is the single capability the ensemble requires from a signal source.
type Source interface {
	Name() string
	Vote(ctx context.Context, mc MarketContext, ps PortfolioState) (Vote, error)
}

// ResolutionFeed delivers market-resolved events from the settlement
// collaborator. The channel closes when the feed shuts down.
type ResolutionFeed interface {
	Resolutions(ctx context.Context) (<-chan Resolution, error)
}

// PriceCache shares the latest observed prices across processes.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error)
	GetPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// TradeStore persists settled trade outcomes.
type TradeStore interface {
	Insert(ctx context.Context, outcome TradeOutcome) error
	ListRecent(ctx context.Context, limit int) ([]TradeOutcome, error)
	WinRate(ctx context.Context, asset string, strategy string, since time.Time) (winRate float64, trades int, err error)
}

// PositionStore persists hedge positions across restarts.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	Delete(ctx context.Context, marketID string) error
	ListOpen(ctx context.Context) ([]Position, error)
}
