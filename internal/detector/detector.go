// Package detector maintains per-token price histories and flags flash
// crashes: abrupt price dislocations inside a short sliding window.
package detector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// PricePoint records a single price observation at a point in time.
type PricePoint struct {
	Price float64
	Time  time.Time
}

// CrashSignal describes a detected flash crash on one side of a market.
type CrashSignal struct {
	MarketID string
	Side     domain.Side
	TokenID  string
	Drop     float64 // fractional, (max-min)/max over the window
	Price    float64 // latest observed price for the crashed side
	At       time.Time
}

// Config holds the detection parameters.
type Config struct {
	Window          time.Duration
	DropThreshold   float64
	HistoryCapacity int
	Cooldown        time.Duration
}

type key struct {
	marketID string
	tokenID  string
}

// Detector keeps a bounded price series per (market, token) and evaluates the
// sliding-window drop fraction on demand. It is safe for concurrent use; all
// methods are pure over stored state apart from the triggering append.
type Detector struct {
	cfg       Config
	history   map[key][]PricePoint
	lastCrash map[string]time.Time // marketID -> last signalled crash
	logger    *slog.Logger
	mu        sync.RWMutex
}

// New creates a Detector with the supplied configuration.
func New(cfg Config, logger *slog.Logger) *Detector {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 100
	}
	return &Detector{
		cfg:       cfg,
		history:   make(map[key][]PricePoint),
		lastCrash: make(map[string]time.Time),
		logger:    logger.With(slog.String("component", "detector")),
	}
}

// Observe appends a price observation for the given (market, token), evicting
// the oldest point once the series exceeds the configured capacity. The entry
// is created on first observation and lives for the process lifetime.
func (d *Detector) Observe(marketID, tokenID string, ts time.Time, price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key{marketID: marketID, tokenID: tokenID}
	pts := append(d.history[k], PricePoint{Price: price, Time: ts})
	if overflow := len(pts) - d.cfg.HistoryCapacity; overflow > 0 {
		pts = append([]PricePoint(nil), pts[overflow:]...)
	}
	d.history[k] = pts
}

// DetectCrash reports whether the (market, token) series shows a drop of at
// least the configured threshold within the window ending at now. Fewer than
// two points inside the window is insufficient signal, not an error.
func (d *Detector) DetectCrash(marketID, tokenID string, now time.Time) bool {
	drop, ok := d.windowDrop(marketID, tokenID, now)
	return ok && drop >= d.cfg.DropThreshold
}

// History returns a copy of the stored series for the given (market, token).
// The returned slice is safe to mutate.
func (d *Detector) History(marketID, tokenID string) []PricePoint {
	d.mu.RLock()
	defer d.mu.RUnlock()

	src := d.history[key{marketID: marketID, tokenID: tokenID}]
	if len(src) == 0 {
		return nil
	}
	out := make([]PricePoint, len(src))
	copy(out, src)
	return out
}

// EvaluateMarket checks both outcome tokens of a market for a crash and
// returns the stronger signal, or nil when neither side crashed. When both
// sides crash in the same tick the larger drop wins; an exact tie goes to
// YES so the rule stays deterministic. A market that recently signalled is
// suppressed for the configured cooldown.
func (d *Detector) EvaluateMarket(snap domain.MarketSnapshot, now time.Time) *CrashSignal {
	d.mu.RLock()
	if last, ok := d.lastCrash[snap.MarketID]; ok && now.Sub(last) < d.cfg.Cooldown {
		d.mu.RUnlock()
		return nil
	}
	d.mu.RUnlock()

	yesDrop, yesOK := d.windowDrop(snap.MarketID, snap.YesTokenID, now)
	noDrop, noOK := d.windowDrop(snap.MarketID, snap.NoTokenID, now)

	yesCrashed := yesOK && yesDrop >= d.cfg.DropThreshold
	noCrashed := noOK && noDrop >= d.cfg.DropThreshold
	if !yesCrashed && !noCrashed {
		return nil
	}

	side := domain.SideYes
	drop := yesDrop
	if noCrashed && (!yesCrashed || noDrop > yesDrop) {
		side = domain.SideNo
		drop = noDrop
	}

	d.mu.Lock()
	d.lastCrash[snap.MarketID] = now
	d.mu.Unlock()

	sig := &CrashSignal{
		MarketID: snap.MarketID,
		Side:     side,
		TokenID:  snap.TokenID(side),
		Drop:     drop,
		Price:    snap.Price(side),
		At:       now,
	}
	d.logger.Warn("flash crash detected",
		slog.String("market", snap.MarketID),
		slog.String("side", string(side)),
		slog.Float64("drop", drop),
		slog.Float64("price", sig.Price),
	)
	return sig
}

// ForgetMarket drops all stored state for a market, typically after it
// resolves. Resolved markets never trade again, so the series would only
// leak otherwise.
func (d *Detector) ForgetMarket(marketID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.history {
		if k.marketID == marketID {
			delete(d.history, k)
		}
	}
	delete(d.lastCrash, marketID)
}

// windowDrop computes (max-min)/max over the points observed within the
// window ending at now. ok is false when fewer than two points fall inside
// the window. Only points already observed at call time participate.
func (d *Detector) windowDrop(marketID, tokenID string, now time.Time) (drop float64, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cutoff := now.Add(-d.cfg.Window)
	pts := d.history[key{marketID: marketID, tokenID: tokenID}]

	var (
		minP, maxP float64
		n          int
	)
	for _, p := range pts {
		if p.Time.Before(cutoff) || p.Time.After(now) {
			continue
		}
		if n == 0 || p.Price < minP {
			minP = p.Price
		}
		if n == 0 || p.Price > maxP {
			maxP = p.Price
		}
		n++
	}
	if n < 2 || maxP <= 0 {
		return 0, false
	}
	return (maxP - minP) / maxP, true
}
