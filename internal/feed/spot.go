// Package feed streams underlying spot prices over websocket and serves
// short-horizon price changes to the decision sources.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds the feed parameters.
type Config struct {
	URL             string // combined-stream websocket base, e.g. wss://stream.binance.com:9443/stream
	Assets          []string
	HistoryCapacity int
	ReconnectWait   time.Duration
}

type tick struct {
	price float64
	at    time.Time
}

// Feed maintains a live spot price series per asset. Run owns the websocket;
// readers use Price and Change concurrently.
type Feed struct {
	cfg    Config
	series map[string][]tick // keyed by upper-case asset symbol, e.g. BTC
	logger *slog.Logger
	mu     sync.RWMutex
}

// streamMessage is the combined-stream envelope: the payload carries the
// symbol and the trade price as a decimal string.
type streamMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

// New creates a Feed for the configured assets.
func New(cfg Config, logger *slog.Logger) *Feed {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 1000
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	return &Feed{
		cfg:    cfg,
		series: make(map[string][]tick),
		logger: logger.With(slog.String("component", "spot_feed")),
	}
}

// Run connects and consumes trade events until the context is cancelled,
// reconnecting after transient disconnects. It always returns the context's
// error on shutdown.
func (f *Feed) Run(ctx context.Context) error {
	url := f.streamURL()
	for {
		if err := f.consume(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("stream disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("wait", f.cfg.ReconnectWait),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.ReconnectWait):
		}
	}
}

func (f *Feed) consume(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", url, err)
	}
	defer conn.Close()
	f.logger.Info("spot stream connected", slog.Int("assets", len(f.cfg.Assets)))

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Debug("skipping unparsable frame", slog.String("error", err.Error()))
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.Price, 64)
		if err != nil || price <= 0 {
			continue
		}
		f.record(assetFromSymbol(msg.Data.Symbol), price, time.Now().UTC())
	}
}

// Record stores one observation. Exposed so tests and replay tooling can
// drive the series without a socket.
func (f *Feed) Record(asset string, price float64, at time.Time) {
	f.record(strings.ToUpper(asset), price, at)
}

func (f *Feed) record(asset string, price float64, at time.Time) {
	if asset == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	s := append(f.series[asset], tick{price: price, at: at})
	if overflow := len(s) - f.cfg.HistoryCapacity; overflow > 0 {
		s = append([]tick(nil), s[overflow:]...)
	}
	f.series[asset] = s
}

// Price returns the latest spot price for an asset. ok is false before the
// first tick arrives.
func (f *Feed) Price(asset string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := f.series[strings.ToUpper(asset)]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].price, true
}

// Change returns the percent change of an asset over the window ending now.
// The reference is the oldest tick inside the window; ok is false with fewer
// than two ticks in the window.
func (f *Feed) Change(asset string, window time.Duration, now time.Time) (pct float64, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cutoff := now.Add(-window)
	var first, last *tick
	s := f.series[strings.ToUpper(asset)]
	for i := range s {
		t := &s[i]
		if t.at.Before(cutoff) || t.at.After(now) {
			continue
		}
		if first == nil {
			first = t
		}
		last = t
	}
	if first == nil || last == nil || first == last || first.price <= 0 {
		return 0, false
	}
	return (last.price - first.price) / first.price * 100, true
}

func (f *Feed) streamURL() string {
	streams := make([]string, 0, len(f.cfg.Assets))
	for _, a := range f.cfg.Assets {
		streams = append(streams, strings.ToLower(a)+"usdt@trade")
	}
	return f.cfg.URL + "?streams=" + strings.Join(streams, "/")
}

// assetFromSymbol maps an exchange symbol like BTCUSDT back to the asset.
func assetFromSymbol(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), "USDT")
}
