// Package hedge tracks two-leg hedge positions per market: a first leg opened
// into a flash crash and a second leg on the opposite side once the combined
// cost locks in a profit.
package hedge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Config holds the hedging parameters.
type Config struct {
	// MaxCombinedCost is the highest leg1 entry + current opposite price at
	// which the second leg still fires. Anything at or below locks in at
	// least 1 - MaxCombinedCost per share.
	MaxCombinedCost float64
}

// Book owns every open hedge position. The scan loop is the single writer;
// the mutex exists so reads from other goroutines stay safe.
type Book struct {
	cfg       Config
	positions map[string]*domain.Position
	store     domain.PositionStore
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewBook creates an empty Book. store may be nil, in which case positions
// live only in memory.
func NewBook(cfg Config, store domain.PositionStore, logger *slog.Logger) *Book {
	return &Book{
		cfg:       cfg,
		positions: make(map[string]*domain.Position),
		store:     store,
		logger:    logger.With(slog.String("component", "hedge")),
	}
}

// Restore loads open positions from the store, typically once at startup.
func (b *Book) Restore(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	open, err := b.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("hedge: restore positions: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range open {
		p := open[i]
		b.positions[p.MarketID] = &p
	}
	b.logger.Info("positions restored", slog.Int("count", len(open)))
	return nil
}

// Get returns a copy of the position for a market, if any.
func (b *Book) Get(marketID string) (domain.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[marketID]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// ListOpen returns copies of every tracked position.
func (b *Book) ListOpen() []domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}

// OpenLeg1 records the first leg of a hedge. A market with any live position
// cannot open another first leg; the state machine never holds two leg-one
// entries at once.
func (b *Book) OpenLeg1(ctx context.Context, snap domain.MarketSnapshot, side domain.Side, price, size float64, strategy string, openedAt time.Time) (domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.positions[snap.MarketID]; exists {
		return domain.Position{}, fmt.Errorf("hedge: market %s already has a position", snap.MarketID)
	}

	p := &domain.Position{
		MarketID:    snap.MarketID,
		Asset:       snap.Asset,
		Strategy:    strategy,
		State:       domain.PositionLeg1Open,
		Leg1Side:    side,
		Leg1Price:   price,
		Leg1Size:    size,
		Leg1TokenID: snap.TokenID(side),
		OpenedAt:    openedAt,
	}
	b.positions[snap.MarketID] = p

	if err := b.persist(ctx, p); err != nil {
		return *p, err
	}
	b.logger.Info("leg 1 opened",
		slog.String("market", snap.MarketID),
		slog.String("side", string(side)),
		slog.Float64("price", price),
		slog.Float64("size", size),
	)
	return *p, nil
}

// ShouldHedge reports whether the second leg should fire: the position holds
// an open first leg and buying the opposite side now would keep the combined
// per-share cost at or under the configured maximum.
func (b *Book) ShouldHedge(marketID string, snap domain.MarketSnapshot) (domain.Side, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.positions[marketID]
	if !ok || p.State != domain.PositionLeg1Open {
		return "", false
	}
	opp := p.Leg1Side.Opposite()
	oppPrice := snap.Price(opp)
	if oppPrice <= 0 {
		return "", false
	}
	if p.Leg1Price+oppPrice > b.cfg.MaxCombinedCost {
		return "", false
	}
	return opp, true
}

// OpenLeg2 records the hedging leg and moves the position to hedged.
func (b *Book) OpenLeg2(ctx context.Context, marketID string, price, size float64, hedgedAt time.Time) (domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[marketID]
	if !ok {
		return domain.Position{}, fmt.Errorf("hedge: no position for market %s: %w", marketID, domain.ErrNotFound)
	}
	if p.State != domain.PositionLeg1Open {
		return domain.Position{}, fmt.Errorf("hedge: market %s is %s, cannot hedge", marketID, p.State)
	}

	p.State = domain.PositionHedged
	p.Leg2Price = price
	p.Leg2Size = size
	p.HedgedAt = &hedgedAt

	if err := b.persist(ctx, p); err != nil {
		return *p, err
	}
	b.logger.Info("leg 2 opened, position hedged",
		slog.String("market", marketID),
		slog.Float64("price", price),
		slog.Float64("combined_cost", p.CombinedEntryCost()),
		slog.Float64("locked_profit", p.GuaranteedProfit()),
	)
	return *p, nil
}

// Settle closes the position for a resolved market and returns the realized
// outcome. The winning side pays one dollar per share; everything spent on
// entries comes off.
func (b *Book) Settle(ctx context.Context, res domain.Resolution) (domain.TradeOutcome, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[res.MarketID]
	if !ok {
		return domain.TradeOutcome{}, false, nil
	}
	p.State = domain.PositionExpired

	cost := p.Leg1Price * p.Leg1Size
	var payout float64
	if p.Leg1Side == res.Winner {
		payout = p.Leg1Size
	}
	if p.HedgedAt != nil {
		cost += p.Leg2Price * p.Leg2Size
		if p.Leg1Side.Opposite() == res.Winner {
			payout = p.Leg2Size
		}
	}
	pnl := payout - cost

	outcome := domain.TradeOutcome{
		MarketID:   res.MarketID,
		Asset:      p.Asset,
		Side:       p.Leg1Side,
		Strategy:   p.Strategy,
		EntryPrice: p.Leg1Price,
		Size:       p.Leg1Size,
		PnL:        pnl,
		Won:        pnl > 0,
		SettledAt:  res.ResolvedAt,
	}

	delete(b.positions, res.MarketID)
	if b.store != nil {
		if err := b.store.Delete(ctx, res.MarketID); err != nil {
			return outcome, true, fmt.Errorf("hedge: delete settled position %s: %w", res.MarketID, err)
		}
	}
	b.logger.Info("position settled",
		slog.String("market", res.MarketID),
		slog.String("winner", string(res.Winner)),
		slog.Float64("pnl", pnl),
	)
	return outcome, true, nil
}

func (b *Book) persist(ctx context.Context, p *domain.Position) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Upsert(ctx, *p); err != nil {
		return fmt.Errorf("hedge: persist position %s: %w", p.MarketID, err)
	}
	return nil
}
