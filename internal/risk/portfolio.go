// Package risk owns portfolio accounting and the pre-trade guard that every
// order must clear.
package risk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Portfolio is the single owner of the running portfolio state: balances,
// per-asset exposure, daily counters and the recent-outcome window feeding
// the circuit breaker. Daily counters reset at the first mutation after UTC
// midnight.
type Portfolio struct {
	state      domain.PortfolioState
	recent     []bool // outcome window, true = win, newest last
	recentCap  int
	currentDay time.Time // UTC midnight of the day the counters cover
	logger     *slog.Logger
	mu         sync.Mutex
}

// NewPortfolio creates a Portfolio starting from the given balance.
func NewPortfolio(startingBalance float64, logger *slog.Logger) *Portfolio {
	return &Portfolio{
		state: domain.PortfolioState{
			AvailableBalance: startingBalance,
			TotalBalance:     startingBalance,
			AssetExposure:    make(map[string]float64),
		},
		recentCap:  20,
		currentDay: midnightUTC(time.Now().UTC()),
		logger:     logger.With(slog.String("component", "portfolio")),
	}
}

// Snapshot returns a copy of the current state, rolling the day over first if
// UTC midnight has passed.
func (p *Portfolio) Snapshot(now time.Time) domain.PortfolioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover(now)

	out := p.state
	out.AssetExposure = make(map[string]float64, len(p.state.AssetExposure))
	for k, v := range p.state.AssetExposure {
		out.AssetExposure[k] = v
	}
	out.OpenPositions = append([]domain.OpenExposure(nil), p.state.OpenPositions...)
	return out
}

// ReserveOpen books an order fill against the portfolio: balance down, the
// leg's notional added to the asset exposure and the open-position list.
func (p *Portfolio) ReserveOpen(exp domain.OpenExposure, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover(now)

	p.state.AvailableBalance -= exp.Notional
	p.state.AssetExposure[exp.Asset] += exp.Notional
	p.state.OpenPositions = append(p.state.OpenPositions, exp)
	p.state.TradesToday++
}

// RecordOutcome applies a settled trade: releases every leg reserved for the
// market (a hedged position holds two), applies the realized PnL and feeds
// the outcome window. Legs that were never reserved here, e.g. positions
// restored after a restart, release nothing because their entry cost was
// never debited.
func (p *Portfolio) RecordOutcome(outcome domain.TradeOutcome, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover(now)

	var released float64
	kept := p.state.OpenPositions[:0]
	for _, exp := range p.state.OpenPositions {
		if exp.MarketID == outcome.MarketID {
			released += exp.Notional
			continue
		}
		kept = append(kept, exp)
	}
	p.state.OpenPositions = kept

	p.state.AssetExposure[outcome.Asset] -= released
	if p.state.AssetExposure[outcome.Asset] <= 0 {
		delete(p.state.AssetExposure, outcome.Asset)
	}

	p.state.AvailableBalance += released + outcome.PnL
	p.state.TotalBalance += outcome.PnL
	p.state.DailyPnL += outcome.PnL
	if outcome.Won {
		p.state.WinsToday++
	} else {
		p.state.LossesToday++
	}

	p.recent = append(p.recent, outcome.Won)
	if len(p.recent) > p.recentCap {
		p.recent = p.recent[len(p.recent)-p.recentCap:]
	}

	p.logger.Info("trade settled",
		slog.String("asset", outcome.Asset),
		slog.Float64("pnl", outcome.PnL),
		slog.Float64("daily_pnl", p.state.DailyPnL),
		slog.Bool("won", outcome.Won),
	)
}

// ConsecutiveLosses returns the length of the current losing streak, counted
// from the most recent outcome backwards. Any win ends the streak.
func (p *Portfolio) ConsecutiveLosses() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	streak := 0
	for i := len(p.recent) - 1; i >= 0; i-- {
		if p.recent[i] {
			break
		}
		streak++
	}
	return streak
}

// rollover resets the daily counters when now has crossed into a new UTC day.
// Caller holds the lock. Balances and exposure carry across days; only the
// day-scoped counters reset.
func (p *Portfolio) rollover(now time.Time) {
	day := midnightUTC(now.UTC())
	if !day.After(p.currentDay) {
		return
	}
	p.logger.Info("daily counters reset",
		slog.Time("new_day", day),
		slog.Float64("prior_daily_pnl", p.state.DailyPnL),
		slog.Int("prior_trades", p.state.TradesToday),
	)
	p.currentDay = day
	p.state.DailyPnL = 0
	p.state.TradesToday = 0
	p.state.WinsToday = 0
	p.state.LossesToday = 0
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
