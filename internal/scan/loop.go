// Package scan drives the trading pipeline: fetch the market universe on a
// fixed interval, evaluate every market concurrently, and apply the resulting
// trade intents one at a time so state mutation stays single-writer.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hedgebot/internal/detector"
	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/ensemble"
	"github.com/alanyoungcy/hedgebot/internal/executor"
	"github.com/alanyoungcy/hedgebot/internal/hedge"
	"github.com/alanyoungcy/hedgebot/internal/risk"
)

// Strategy labels attached to positions and settled trades.
const (
	StrategyFlashCrash  = "flash_crash_hedge"
	StrategyDirectional = "directional"
	StrategyArbitrage   = "arbitrage"
)

// SpotReader serves spot prices to the evaluation stage.
type SpotReader interface {
	Price(asset string) (float64, bool)
	Change(asset string, window time.Duration, now time.Time) (pct float64, ok bool)
}

// Config holds the loop parameters.
type Config struct {
	Interval time.Duration
	Workers  int
	// TradeNotional is the target dollar size for each new leg.
	TradeNotional float64
	// MomentumWindow is the spot lookback handed to the decision sources.
	MomentumWindow time.Duration
	// MaxCombinedCost marks a market as an arbitrage candidate when both
	// sides together trade at or under it.
	MaxCombinedCost float64
}

// Loop wires the pipeline stages together and owns all state mutation.
type Loop struct {
	cfg         Config
	markets     domain.MarketProvider
	detector    *detector.Detector
	book        *hedge.Book
	engine      *ensemble.Engine
	guard       *risk.Guard
	portfolio   *risk.Portfolio
	exec        *executor.Executor
	trades      domain.TradeStore
	prices      domain.PriceCache
	spot        SpotReader
	resolutions domain.ResolutionFeed
	logger      *slog.Logger
}

// Deps carries the loop's collaborators. trades, prices, spot and resolutions
// may be nil; the corresponding stages are then skipped.
type Deps struct {
	Markets     domain.MarketProvider
	Detector    *detector.Detector
	Book        *hedge.Book
	Engine      *ensemble.Engine
	Guard       *risk.Guard
	Portfolio   *risk.Portfolio
	Executor    *executor.Executor
	Trades      domain.TradeStore
	Prices      domain.PriceCache
	Spot        SpotReader
	Resolutions domain.ResolutionFeed
}

// New creates a Loop.
func New(cfg Config, deps Deps, logger *slog.Logger) *Loop {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.MomentumWindow <= 0 {
		cfg.MomentumWindow = time.Minute
	}
	return &Loop{
		cfg:         cfg,
		markets:     deps.Markets,
		detector:    deps.Detector,
		book:        deps.Book,
		engine:      deps.Engine,
		guard:       deps.Guard,
		portfolio:   deps.Portfolio,
		exec:        deps.Executor,
		trades:      deps.Trades,
		prices:      deps.Prices,
		spot:        deps.Spot,
		resolutions: deps.Resolutions,
		logger:      logger.With(slog.String("component", "scan")),
	}
}

// Run ticks until the context is cancelled. A tick in flight finishes before
// shutdown; resolutions interleave with ticks on the same goroutine so
// settlement and trading never race.
func (l *Loop) Run(ctx context.Context) error {
	var resCh <-chan domain.Resolution
	if l.resolutions != nil {
		ch, err := l.resolutions.Resolutions(ctx)
		if err != nil {
			return fmt.Errorf("scan: start resolution feed: %w", err)
		}
		resCh = ch
	}

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.logger.Info("scan loop started",
		slog.Duration("interval", l.cfg.Interval),
		slog.Int("workers", l.cfg.Workers),
	)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scan loop stopped")
			return ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				resCh = nil
				continue
			}
			l.settle(ctx, res)
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// intent is the output of the read-only evaluation stage. Only the apply
// stage, running on the loop goroutine, turns intents into orders and state.
type intent struct {
	kind     string // "leg1", "hedge", "ensemble"
	snapshot domain.MarketSnapshot
	crash    *detector.CrashSignal
	hedge    domain.Side
	decision domain.Decision
}

func (l *Loop) tick(ctx context.Context) {
	markets, err := l.markets.ActiveMarkets(ctx)
	if err != nil {
		l.logger.Error("market fetch failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, m := range markets {
		l.detector.Observe(m.MarketID, m.YesTokenID, m.FetchedAt, m.YesPrice)
		l.detector.Observe(m.MarketID, m.NoTokenID, m.FetchedAt, m.NoPrice)
	}
	l.publishPrices(ctx, markets)

	var (
		mu      sync.Mutex
		intents []intent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for _, m := range markets {
		g.Go(func() error {
			if it := l.evaluate(gctx, m, now); it != nil {
				mu.Lock()
				intents = append(intents, *it)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, it := range intents {
		if ctx.Err() != nil {
			return
		}
		l.apply(ctx, it, now)
	}
}

// evaluate inspects one market and proposes at most one intent. It reads
// shared state but never mutates positions or the portfolio.
func (l *Loop) evaluate(ctx context.Context, m domain.MarketSnapshot, now time.Time) *intent {
	if side, ok := l.book.ShouldHedge(m.MarketID, m); ok {
		return &intent{kind: "hedge", snapshot: m, hedge: side}
	}
	if _, held := l.book.Get(m.MarketID); held {
		return nil
	}

	if sig := l.detector.EvaluateMarket(m, now); sig != nil {
		return &intent{kind: "leg1", snapshot: m, crash: sig}
	}

	mktCtx := domain.MarketContext{Snapshot: m, Opportunity: domain.OpportunityDirectional}
	if m.CombinedCost() > 0 && m.CombinedCost() <= l.cfg.MaxCombinedCost {
		mktCtx.Opportunity = domain.OpportunityArbitrage
	}
	if l.spot != nil {
		if p, ok := l.spot.Price(m.Asset); ok {
			mktCtx.SpotPrice = p
		}
		if pct, ok := l.spot.Change(m.Asset, l.cfg.MomentumWindow, now); ok {
			mktCtx.SpotChange = pct
		}
	}

	d := l.engine.Decide(ctx, mktCtx, l.portfolio.Snapshot(now))
	if !l.engine.ShouldExecute(d) {
		return nil
	}
	return &intent{kind: "ensemble", snapshot: m, decision: d}
}

func (l *Loop) apply(ctx context.Context, it intent, now time.Time) {
	switch it.kind {
	case "hedge":
		l.applyHedge(ctx, it)
	case "leg1":
		l.applyLeg1(ctx, it, now)
	case "ensemble":
		l.applyEnsemble(ctx, it, now)
	}
}

func (l *Loop) applyLeg1(ctx context.Context, it intent, now time.Time) {
	m, sig := it.snapshot, it.crash
	if !l.approved(ctx, m.Asset, sig.TokenID, l.cfg.TradeNotional, sig.Price) {
		return
	}
	fill, err := l.exec.Buy(ctx, m.MarketID, sig.TokenID, sig.Price, l.cfg.TradeNotional, StrategyFlashCrash)
	if err != nil {
		l.logger.Error("leg 1 buy failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	if _, err := l.book.OpenLeg1(ctx, m, sig.Side, fill.Price, fill.Shares, StrategyFlashCrash, now); err != nil {
		l.logger.Error("leg 1 bookkeeping failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	l.portfolio.ReserveOpen(legExposure(m, sig.Side, fill), now)
}

func (l *Loop) applyHedge(ctx context.Context, it intent) {
	m := it.snapshot
	now := time.Now().UTC()

	// Re-check under current state; another intent this tick may have
	// already hedged or the combined cost may have drifted.
	side, ok := l.book.ShouldHedge(m.MarketID, m)
	if !ok {
		return
	}
	pos, _ := l.book.Get(m.MarketID)
	price := m.Price(side)
	desired := pos.Leg1Size * price
	if !l.approved(ctx, m.Asset, m.TokenID(side), desired, price) {
		return
	}
	fill, err := l.exec.Buy(ctx, m.MarketID, m.TokenID(side), price, desired, pos.Strategy)
	if err != nil {
		l.logger.Error("hedge buy failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	if _, err := l.book.OpenLeg2(ctx, m.MarketID, fill.Price, fill.Shares, now); err != nil {
		l.logger.Error("hedge bookkeeping failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	l.portfolio.ReserveOpen(legExposure(m, side, fill), now)
}

func (l *Loop) applyEnsemble(ctx context.Context, it intent, now time.Time) {
	m, d := it.snapshot, it.decision
	strategy := StrategyDirectional
	if d.Action == domain.ActionBuyBoth {
		strategy = StrategyArbitrage
	}

	side := domain.SideYes
	if d.Action == domain.ActionBuyNo {
		side = domain.SideNo
	}
	price := m.Price(side)
	if !l.approved(ctx, m.Asset, m.TokenID(side), l.cfg.TradeNotional, price) {
		return
	}
	fill, err := l.exec.Buy(ctx, m.MarketID, m.TokenID(side), price, l.cfg.TradeNotional, strategy)
	if err != nil {
		l.logger.Error("ensemble buy failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	if _, err := l.book.OpenLeg1(ctx, m, side, fill.Price, fill.Shares, strategy, now); err != nil {
		l.logger.Error("ensemble bookkeeping failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	l.portfolio.ReserveOpen(legExposure(m, side, fill), now)

	if d.Action != domain.ActionBuyBoth {
		return
	}
	// Second half of the arbitrage pair: buy the opposite side to lock the
	// spread. Sized to match the first fill.
	opp := side.Opposite()
	oppPrice := m.Price(opp)
	oppDesired := fill.Shares * oppPrice
	if !l.approved(ctx, m.Asset, m.TokenID(opp), oppDesired, oppPrice) {
		return
	}
	oppFill, err := l.exec.Buy(ctx, m.MarketID, m.TokenID(opp), oppPrice, oppDesired, strategy)
	if err != nil {
		l.logger.Error("arbitrage second leg failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	if _, err := l.book.OpenLeg2(ctx, m.MarketID, oppFill.Price, oppFill.Shares, now); err != nil {
		l.logger.Error("arbitrage bookkeeping failed", slog.String("market", m.MarketID), slog.String("error", err.Error()))
		return
	}
	l.portfolio.ReserveOpen(legExposure(m, opp, oppFill), now)
}

// legExposure converts a fill into the portfolio reservation for one leg.
func legExposure(m domain.MarketSnapshot, side domain.Side, fill executor.Fill) domain.OpenExposure {
	return domain.OpenExposure{
		MarketID:   m.MarketID,
		Asset:      m.Asset,
		Side:       side,
		EntryPrice: fill.Price,
		Size:       fill.Shares,
		Notional:   fill.Cost,
	}
}

func (l *Loop) approved(ctx context.Context, asset, tokenID string, notional, price float64) bool {
	shares := 0.0
	if price > 0 {
		shares = notional / price
	}
	v := l.guard.Approve(ctx, risk.TradeRequest{
		Asset:    asset,
		TokenID:  tokenID,
		Side:     domain.OrderSideBuy,
		Shares:   shares,
		Notional: notional,
	})
	return v.Allowed
}

func (l *Loop) settle(ctx context.Context, res domain.Resolution) {
	outcome, settled, err := l.book.Settle(ctx, res)
	if err != nil {
		l.logger.Error("settlement failed", slog.String("market", res.MarketID), slog.String("error", err.Error()))
	}
	if !settled {
		return
	}
	l.detector.ForgetMarket(res.MarketID)

	now := time.Now().UTC()
	l.portfolio.RecordOutcome(outcome, now)
	if l.trades != nil {
		if err := l.trades.Insert(ctx, outcome); err != nil {
			l.logger.Error("trade insert failed", slog.String("market", res.MarketID), slog.String("error", err.Error()))
		}
	}
}

// publishPrices pushes the tick's prices to the shared cache, best effort.
func (l *Loop) publishPrices(ctx context.Context, markets []domain.MarketSnapshot) {
	if l.prices == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for _, m := range markets {
		if err := l.prices.SetPrice(pubCtx, m.YesTokenID, m.YesPrice, m.FetchedAt); err != nil {
			l.logger.Debug("price publish failed", slog.String("token", m.YesTokenID), slog.String("error", err.Error()))
			return
		}
		if err := l.prices.SetPrice(pubCtx, m.NoTokenID, m.NoPrice, m.FetchedAt); err != nil {
			l.logger.Debug("price publish failed", slog.String("token", m.NoTokenID), slog.String("error", err.Error()))
			return
		}
	}
}

// Watchlist returns the market IDs with live positions, for the resolution
// poller.
func (l *Loop) Watchlist() []string {
	open := l.book.ListOpen()
	ids := make([]string, 0, len(open))
	for _, p := range open {
		ids = append(ids, p.MarketID)
	}
	return ids
}
