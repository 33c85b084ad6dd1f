package feed

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestFeed() *Feed {
	return New(Config{
		URL:             "wss://example.invalid/stream",
		Assets:          []string{"BTC", "ETH"},
		HistoryCapacity: 4,
	}, slog.New(slog.DiscardHandler))
}

func TestPriceReturnsLatestTick(t *testing.T) {
	f := newTestFeed()
	now := time.Now().UTC()

	_, ok := f.Price("BTC")
	assert.False(t, ok)

	f.Record("btc", 50000, now)
	f.Record("BTC", 50100, now.Add(time.Second))

	p, ok := f.Price("BTC")
	assert.True(t, ok)
	assert.InDelta(t, 50100, p, 1e-9)

	_, ok = f.Price("ETH")
	assert.False(t, ok, "assets do not share series")
}

func TestChangeOverWindow(t *testing.T) {
	f := newTestFeed()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.Record("BTC", 50000, base.Add(-10*time.Minute)) // outside the window
	f.Record("BTC", 40000, base.Add(-50*time.Second))
	f.Record("BTC", 40200, base.Add(-5*time.Second))

	pct, ok := f.Change("BTC", time.Minute, base)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, pct, 1e-9)

	// One tick in the window is not a change.
	_, ok = f.Change("BTC", 10*time.Second, base)
	assert.False(t, ok)
}

func TestRecordEvictsAtCapacity(t *testing.T) {
	f := newTestFeed()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		f.Record("BTC", float64(100+i), base.Add(time.Duration(i)*time.Second))
	}

	pct, ok := f.Change("BTC", time.Hour, base.Add(6*time.Second))
	assert.True(t, ok)
	// Oldest surviving tick is 102 (capacity 4), newest 105.
	assert.InDelta(t, (105.0-102.0)/102.0*100, pct, 1e-9)
}

func TestStreamURLAndSymbolMapping(t *testing.T) {
	f := newTestFeed()
	assert.Equal(t, "wss://example.invalid/stream?streams=btcusdt@trade/ethusdt@trade", f.streamURL())
	assert.Equal(t, "BTC", assetFromSymbol("BTCUSDT"))
	assert.Equal(t, "SOL", assetFromSymbol("solusdt"))
}
