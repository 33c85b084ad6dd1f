package scan

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/hedgebot/internal/detector"
	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/ensemble"
	"github.com/alanyoungcy/hedgebot/internal/executor"
	"github.com/alanyoungcy/hedgebot/internal/hedge"
	"github.com/alanyoungcy/hedgebot/internal/risk"
)

type fakeMarkets struct {
	snapshots []domain.MarketSnapshot
}

func (f *fakeMarkets) ActiveMarkets(context.Context) ([]domain.MarketSnapshot, error) {
	return f.snapshots, nil
}

type fakeGateway struct {
	orders []domain.Order
}

func (g *fakeGateway) SubmitOrder(_ context.Context, o domain.Order) (domain.OrderResult, error) {
	g.orders = append(g.orders, o)
	return domain.OrderResult{
		Success:      true,
		OrderID:      "venue-" + o.ID,
		FilledShares: o.Shares,
		FilledPrice:  o.Price,
	}, nil
}

type fakeTrades struct {
	inserted []domain.TradeOutcome
}

func (f *fakeTrades) Insert(_ context.Context, o domain.TradeOutcome) error {
	f.inserted = append(f.inserted, o)
	return nil
}

func (f *fakeTrades) ListRecent(context.Context, int) ([]domain.TradeOutcome, error) {
	return f.inserted, nil
}

func (f *fakeTrades) WinRate(context.Context, string, string, time.Time) (float64, int, error) {
	return 0, 0, nil
}

type skipSource struct{}

func (skipSource) Name() string { return "skip" }

func (skipSource) Vote(context.Context, domain.MarketContext, domain.PortfolioState) (domain.Vote, error) {
	return domain.Vote{Action: domain.ActionSkip, Confidence: 100}, nil
}

type fixture struct {
	loop      *Loop
	markets   *fakeMarkets
	gateway   *fakeGateway
	trades    *fakeTrades
	book      *hedge.Book
	portfolio *risk.Portfolio
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	det := detector.New(detector.Config{
		Window:        3 * time.Second,
		DropThreshold: 0.15,
		Cooldown:      time.Minute,
	}, logger)
	book := hedge.NewBook(hedge.Config{MaxCombinedCost: 0.95}, nil, logger)
	engine, err := ensemble.New(ensemble.Config{MinConsensus: 60, MinConfidence: 60},
		[]domain.Source{skipSource{}}, logger)
	require.NoError(t, err)

	portfolio := risk.NewPortfolio(100, logger)
	guard := risk.NewGuard(risk.GuardConfig{
		MaxConsecutiveLosses: 5,
		MaxDailyLoss:         10,
		MaxDailyTrades:       50,
		MaxAssetExposurePct:  0.25,
		MaxSlippagePct:       0.02,
	}, portfolio, nil, logger)

	gateway := &fakeGateway{}
	exec := executor.New(executor.Config{
		MinNotional:   1,
		SubmitTimeout: time.Second,
		Retry:         executor.RetryPolicy{MaxAttempts: 1, BaseBackoff: time.Millisecond},
	}, gateway, logger)

	markets := &fakeMarkets{}
	trades := &fakeTrades{}

	loop := New(Config{
		Interval:        time.Second,
		Workers:         4,
		TradeNotional:   5,
		MomentumWindow:  time.Minute,
		MaxCombinedCost: 0.95,
	}, Deps{
		Markets:   markets,
		Detector:  det,
		Book:      book,
		Engine:    engine,
		Guard:     guard,
		Portfolio: portfolio,
		Executor:  exec,
		Trades:    trades,
	}, logger)

	return &fixture{loop: loop, markets: markets, gateway: gateway, trades: trades, book: book, portfolio: portfolio}
}

func marketAt(yes, no float64, fetched time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:   "m1",
		Question:   "Bitcoin Up or Down",
		Asset:      "BTC",
		YesPrice:   yes,
		NoPrice:    no,
		YesTokenID: "tok-yes",
		NoTokenID:  "tok-no",
		EndTime:    fetched.Add(10 * time.Minute),
		FetchedAt:  fetched,
	}
}

func TestTickOpensLeg1OnCrashThenHedges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// Steady prices: nothing should trade.
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.50, 0.52, base)}
	f.loop.tick(ctx)
	assert.Empty(t, f.gateway.orders)

	// YES collapses 40% inside the window: leg 1 fires on YES.
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.30, 0.52, base.Add(time.Second))}
	f.loop.tick(ctx)
	require.Len(t, f.gateway.orders, 1)
	assert.Equal(t, "tok-yes", f.gateway.orders[0].TokenID)

	pos, ok := f.book.Get("m1")
	require.True(t, ok)
	assert.Equal(t, domain.PositionLeg1Open, pos.State)
	assert.Equal(t, domain.SideYes, pos.Leg1Side)
	assert.Equal(t, StrategyFlashCrash, pos.Strategy)

	// Opposite side cheap enough to lock profit: 0.30 + 0.55 = 0.85.
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.32, 0.55, base.Add(2 * time.Second))}
	f.loop.tick(ctx)
	require.Len(t, f.gateway.orders, 2)
	assert.Equal(t, "tok-no", f.gateway.orders[1].TokenID)

	pos, ok = f.book.Get("m1")
	require.True(t, ok)
	assert.Equal(t, domain.PositionHedged, pos.State)
	assert.Contains(t, f.loop.Watchlist(), "m1")
}

func TestTickHoldsAtMostOnePositionPerMarket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.50, 0.52, base)}
	f.loop.tick(ctx)
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.30, 0.52, base.Add(time.Second))}
	f.loop.tick(ctx)
	require.Len(t, f.gateway.orders, 1)

	// Price still depressed and hedge not yet possible: no second entry.
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.30, 0.70, base.Add(2 * time.Second))}
	f.loop.tick(ctx)
	assert.Len(t, f.gateway.orders, 1)
}

func TestSettleRecordsOutcomeAndFreesMarket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.50, 0.52, base)}
	f.loop.tick(ctx)
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.30, 0.52, base.Add(time.Second))}
	f.loop.tick(ctx)
	require.Len(t, f.gateway.orders, 1)

	f.loop.settle(ctx, domain.Resolution{
		MarketID:   "m1",
		Winner:     domain.SideYes,
		ResolvedAt: base.Add(10 * time.Minute),
	})

	require.Len(t, f.trades.inserted, 1)
	out := f.trades.inserted[0]
	assert.Equal(t, StrategyFlashCrash, out.Strategy)
	assert.True(t, out.Won)

	state := f.portfolio.Snapshot(base)
	assert.Equal(t, 1, state.WinsToday)
	assert.Greater(t, state.DailyPnL, 0.0)

	_, held := f.book.Get("m1")
	assert.False(t, held)
	assert.Empty(t, f.loop.Watchlist())
}

func TestSettleHedgedPositionReleasesBothLegs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.50, 0.52, base)}
	f.loop.tick(ctx)
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.30, 0.52, base.Add(time.Second))}
	f.loop.tick(ctx)
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.32, 0.55, base.Add(2 * time.Second))}
	f.loop.tick(ctx)
	require.Len(t, f.gateway.orders, 2)

	mid := f.portfolio.Snapshot(base)
	require.Len(t, mid.OpenPositions, 2)
	require.Greater(t, mid.AssetExposure["BTC"], 0.0)

	f.loop.settle(ctx, domain.Resolution{
		MarketID:   "m1",
		Winner:     domain.SideNo,
		ResolvedAt: base.Add(10 * time.Minute),
	})

	// Both legs' notional must come back; a leak leaves the available
	// balance trailing the total.
	state := f.portfolio.Snapshot(base)
	assert.Empty(t, state.OpenPositions)
	assert.NotContains(t, state.AssetExposure, "BTC")
	assert.Zero(t, state.TotalExposure())
	assert.InDelta(t, state.TotalBalance, state.AvailableBalance, 1e-9)
	assert.Greater(t, state.TotalBalance, 100.0, "hedged below 1.00 combined locks a profit")
}

func TestGuardBlocksLeg1(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	// Trip the circuit breaker before any signal arrives.
	for i := 0; i < 5; i++ {
		f.portfolio.RecordOutcome(domain.TradeOutcome{Asset: "BTC", PnL: -0.5}, base)
	}

	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.50, 0.52, base)}
	f.loop.tick(ctx)
	f.markets.snapshots = []domain.MarketSnapshot{marketAt(0.30, 0.52, base.Add(time.Second))}
	f.loop.tick(ctx)

	assert.Empty(t, f.gateway.orders)
	_, held := f.book.Get("m1")
	assert.False(t, held)
}
