package hedge

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

type memStore struct {
	upserts map[string]domain.Position
	deletes []string
}

func newMemStore() *memStore {
	return &memStore{upserts: make(map[string]domain.Position)}
}

func (s *memStore) Upsert(_ context.Context, p domain.Position) error {
	s.upserts[p.MarketID] = p
	return nil
}

func (s *memStore) Delete(_ context.Context, marketID string) error {
	s.deletes = append(s.deletes, marketID)
	delete(s.upserts, marketID)
	return nil
}

func (s *memStore) ListOpen(context.Context) ([]domain.Position, error) {
	out := make([]domain.Position, 0, len(s.upserts))
	for _, p := range s.upserts {
		out = append(out, p)
	}
	return out, nil
}

func newTestBook(t *testing.T, store domain.PositionStore) *Book {
	t.Helper()
	return NewBook(Config{MaxCombinedCost: 0.95}, store, slog.New(slog.DiscardHandler))
}

func snap(yes, no float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:   "m1",
		Asset:      "BTC",
		YesPrice:   yes,
		NoPrice:    no,
		YesTokenID: "y",
		NoTokenID:  "n",
	}
}

func TestOpenLeg1RejectsSecondEntry(t *testing.T) {
	b := newTestBook(t, nil)
	now := time.Now().UTC()

	_, err := b.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
	require.NoError(t, err)

	_, err = b.OpenLeg1(context.Background(), snap(0.28, 0.74), domain.SideNo, 0.74, 10, "flash_crash_hedge", now)
	assert.Error(t, err, "a market never holds two first legs")
}

func TestShouldHedgeOnlyUnderCombinedCostCeiling(t *testing.T) {
	b := newTestBook(t, nil)
	now := time.Now().UTC()
	_, err := b.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
	require.NoError(t, err)

	// 0.30 + 0.66 = 0.96: too expensive.
	_, ok := b.ShouldHedge("m1", snap(0.34, 0.66))
	assert.False(t, ok)

	// 0.30 + 0.65 = 0.95: exactly at the ceiling still hedges.
	side, ok := b.ShouldHedge("m1", snap(0.35, 0.65))
	require.True(t, ok)
	assert.Equal(t, domain.SideNo, side)

	// Unknown markets and already-hedged positions never hedge.
	_, ok = b.ShouldHedge("nope", snap(0.35, 0.60))
	assert.False(t, ok)

	_, err = b.OpenLeg2(context.Background(), "m1", 0.60, 10, now)
	require.NoError(t, err)
	_, ok = b.ShouldHedge("m1", snap(0.35, 0.10))
	assert.False(t, ok)
}

func TestOpenLeg2TransitionsAndLocksProfit(t *testing.T) {
	store := newMemStore()
	b := newTestBook(t, store)
	now := time.Now().UTC()

	_, err := b.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
	require.NoError(t, err)

	p, err := b.OpenLeg2(context.Background(), "m1", 0.60, 10, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.PositionHedged, p.State)
	assert.InDelta(t, 0.90, p.CombinedEntryCost(), 1e-9)
	assert.InDelta(t, 0.10, p.GuaranteedProfit(), 1e-9)
	assert.Equal(t, domain.PositionHedged, store.upserts["m1"].State)

	// Hedging twice is a state machine violation.
	_, err = b.OpenLeg2(context.Background(), "m1", 0.55, 10, now)
	assert.Error(t, err)
}

func TestSettleHedgedPositionProfitsEitherWay(t *testing.T) {
	for _, winner := range []domain.Side{domain.SideYes, domain.SideNo} {
		t.Run(string(winner), func(t *testing.T) {
			store := newMemStore()
			b := newTestBook(t, store)
			now := time.Now().UTC()

			_, err := b.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
			require.NoError(t, err)
			_, err = b.OpenLeg2(context.Background(), "m1", 0.60, 10, now)
			require.NoError(t, err)

			out, settled, err := b.Settle(context.Background(), domain.Resolution{
				MarketID:   "m1",
				Winner:     winner,
				ResolvedAt: now.Add(10 * time.Minute),
			})
			require.NoError(t, err)
			require.True(t, settled)

			// Cost 10*(0.30+0.60)=9, payout 10 either way.
			assert.InDelta(t, 1.0, out.PnL, 1e-9)
			assert.True(t, out.Won)
			assert.Contains(t, store.deletes, "m1")
			_, still := b.Get("m1")
			assert.False(t, still)
		})
	}
}

func TestSettleUnhedgedLegWinsAndLoses(t *testing.T) {
	now := time.Now().UTC()

	b := newTestBook(t, nil)
	_, err := b.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
	require.NoError(t, err)
	out, settled, err := b.Settle(context.Background(), domain.Resolution{MarketID: "m1", Winner: domain.SideYes, ResolvedAt: now})
	require.NoError(t, err)
	require.True(t, settled)
	assert.InDelta(t, 7.0, out.PnL, 1e-9) // 10 payout - 3 cost
	assert.True(t, out.Won)
	assert.Equal(t, "flash_crash_hedge", out.Strategy)

	b2 := newTestBook(t, nil)
	_, err = b2.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
	require.NoError(t, err)
	out, settled, err = b2.Settle(context.Background(), domain.Resolution{MarketID: "m1", Winner: domain.SideNo, ResolvedAt: now})
	require.NoError(t, err)
	require.True(t, settled)
	assert.InDelta(t, -3.0, out.PnL, 1e-9)
	assert.False(t, out.Won)
}

func TestRestoreLoadsOpenPositions(t *testing.T) {
	store := newMemStore()
	seed := newTestBook(t, store)
	now := time.Now().UTC()
	_, err := seed.OpenLeg1(context.Background(), snap(0.30, 0.72), domain.SideYes, 0.30, 10, "flash_crash_hedge", now)
	require.NoError(t, err)

	fresh := newTestBook(t, store)
	require.NoError(t, fresh.Restore(context.Background()))

	p, ok := fresh.Get("m1")
	require.True(t, ok)
	assert.Equal(t, domain.PositionLeg1Open, p.State)
	assert.Equal(t, domain.SideYes, p.Leg1Side)
}
