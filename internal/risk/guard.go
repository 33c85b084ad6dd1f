package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Check names the individual guard checks in the order they run.
type Check string

const (
	CheckCircuitBreaker Check = "circuit_breaker"
	CheckDailyLoss      Check = "daily_loss"
	CheckDailyTrades    Check = "daily_trades"
	CheckAssetExposure  Check = "asset_exposure"
	CheckSlippage       Check = "slippage"
)

// Verdict is the guard's answer for a proposed trade. Degraded marks an
// approval reached without order book data for the slippage check.
type Verdict struct {
	Allowed  bool
	Check    Check
	Reason   string
	Degraded bool
}

// GuardConfig holds the risk limits.
type GuardConfig struct {
	MaxConsecutiveLosses int
	MaxDailyLoss         float64 // dollars, positive
	MaxDailyTrades       int
	MaxAssetExposurePct  float64 // fraction of total balance, 0-1
	MaxSlippagePct       float64 // fraction, 0-1
}

// TradeRequest describes the order a strategy wants to place.
type TradeRequest struct {
	Asset    string
	TokenID  string
	Side     domain.OrderSide
	Shares   float64
	Notional float64
}

// Guard runs the fixed sequence of pre-trade checks. The first failing check
// wins; later checks are not evaluated.
type Guard struct {
	cfg       GuardConfig
	portfolio *Portfolio
	books     domain.BookProvider
	logger    *slog.Logger
}

// NewGuard creates a Guard. books may be nil; the slippage check then always
// passes degraded.
func NewGuard(cfg GuardConfig, portfolio *Portfolio, books domain.BookProvider, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:       cfg,
		portfolio: portfolio,
		books:     books,
		logger:    logger.With(slog.String("component", "risk_guard")),
	}
}

// Approve evaluates the checks in order: circuit breaker, daily loss, daily
// trade cap, per-asset exposure, slippage. Missing order book data degrades
// the slippage check to an approval rather than blocking the trade.
func (g *Guard) Approve(ctx context.Context, req TradeRequest) Verdict {
	state := g.portfolio.Snapshot(time.Now().UTC())

	if streak := g.portfolio.ConsecutiveLosses(); streak >= g.cfg.MaxConsecutiveLosses {
		return g.block(CheckCircuitBreaker, fmt.Sprintf("%d consecutive losses", streak))
	}

	if state.DailyPnL <= -g.cfg.MaxDailyLoss {
		return g.block(CheckDailyLoss, fmt.Sprintf("daily pnl %.2f at limit %.2f", state.DailyPnL, -g.cfg.MaxDailyLoss))
	}

	if state.TradesToday >= g.cfg.MaxDailyTrades {
		return g.block(CheckDailyTrades, fmt.Sprintf("%d trades today at cap %d", state.TradesToday, g.cfg.MaxDailyTrades))
	}

	if state.TotalBalance > 0 {
		projected := (state.AssetExposure[req.Asset] + req.Notional) / state.TotalBalance
		if projected > g.cfg.MaxAssetExposurePct {
			return g.block(CheckAssetExposure,
				fmt.Sprintf("%s exposure would reach %.1f%% of balance, cap %.1f%%",
					req.Asset, projected*100, g.cfg.MaxAssetExposurePct*100))
		}
	}

	return g.checkSlippage(ctx, req)
}

func (g *Guard) checkSlippage(ctx context.Context, req TradeRequest) Verdict {
	if g.books == nil {
		return Verdict{Allowed: true, Check: CheckSlippage, Degraded: true, Reason: "no book provider"}
	}

	est, err := g.books.EstimateSlippage(ctx, req.TokenID, req.Side, req.Shares)
	if err != nil || !est.HasData {
		// A market without book data is not a reason to refuse; the trade
		// goes through flagged as degraded.
		reason := "no order book data"
		if err != nil {
			reason = err.Error()
		}
		g.logger.Warn("slippage check degraded",
			slog.String("token", req.TokenID),
			slog.String("reason", reason),
		)
		return Verdict{Allowed: true, Check: CheckSlippage, Degraded: true, Reason: reason}
	}

	if est.SlippagePct > g.cfg.MaxSlippagePct {
		return g.block(CheckSlippage,
			fmt.Sprintf("estimated slippage %.2f%% above cap %.2f%%", est.SlippagePct*100, g.cfg.MaxSlippagePct*100))
	}
	return Verdict{Allowed: true}
}

func (g *Guard) block(check Check, reason string) Verdict {
	g.logger.Warn("trade blocked",
		slog.String("check", string(check)),
		slog.String("reason", reason),
	)
	return Verdict{Allowed: false, Check: check, Reason: reason}
}
