package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Config holds execution parameters.
type Config struct {
	MinNotional   float64
	SubmitTimeout time.Duration
	Retry         RetryPolicy
}

// Fill reports what an order actually did at the venue, which is what every
// downstream accounting step must use; requested size and price are only
// intents.
type Fill struct {
	OrderID string
	Shares  float64
	Price   float64
	Cost    float64
}

// Executor submits buy orders through the execution gateway with sizing and
// retries applied.
type Executor struct {
	cfg     Config
	gateway domain.ExecutionGateway
	logger  *slog.Logger
}

// New creates an Executor over the given gateway.
func New(cfg Config, gateway domain.ExecutionGateway, logger *slog.Logger) *Executor {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Executor{
		cfg:     cfg,
		gateway: gateway,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Buy sizes and submits a buy order for the given token. The returned Fill
// carries the venue-confirmed shares and price. A zero-sized order (price at
// or below zero) is an error: there is nothing meaningful to submit.
func (e *Executor) Buy(ctx context.Context, marketID, tokenID string, price, desiredNotional float64, strategy string) (Fill, error) {
	shares, notional := SizeOrder(price, desiredNotional, e.cfg.MinNotional)
	if shares <= 0 {
		return Fill{}, fmt.Errorf("executor: cannot size order for token %s at price %.4f: %w",
			tokenID, price, domain.ErrInvalidOrder)
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		TokenID:   tokenID,
		Side:      domain.OrderSideBuy,
		Price:     price,
		Shares:    shares,
		Notional:  notional,
		Strategy:  strategy,
		CreatedAt: time.Now().UTC(),
	}

	var result domain.OrderResult
	err := e.cfg.Retry.run(ctx, func(attempt int) (bool, error) {
		subCtx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
		defer cancel()

		res, err := e.gateway.SubmitOrder(subCtx, order)
		if err != nil {
			e.logger.Warn("order submission failed",
				slog.String("order_id", order.ID),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			// Transport-level failures are worth retrying; the venue
			// deduplicates on the client order id.
			return true, fmt.Errorf("executor: submit order %s: %w", order.ID, err)
		}
		if !res.Success {
			e.logger.Warn("order rejected",
				slog.String("order_id", order.ID),
				slog.Int("attempt", attempt+1),
				slog.String("reason", string(res.Reason)),
				slog.String("message", res.Message),
			)
			return res.Retryable, fmt.Errorf("executor: order %s rejected: %s (%s)", order.ID, res.Reason, res.Message)
		}
		result = res
		return false, nil
	})
	if err != nil {
		return Fill{}, err
	}

	fill := Fill{
		OrderID: result.OrderID,
		Shares:  result.FilledShares,
		Price:   result.FilledPrice,
	}
	// Some gateways omit fill details on immediate acceptance; fall back to
	// the requested size rather than recording a zero position.
	if fill.Shares <= 0 {
		fill.Shares = order.Shares
	}
	if fill.Price <= 0 {
		fill.Price = order.Price
	}
	fill.Cost = fill.Shares * fill.Price

	e.logger.Info("order filled",
		slog.String("order_id", fill.OrderID),
		slog.String("market", marketID),
		slog.Float64("shares", fill.Shares),
		slog.Float64("price", fill.Price),
		slog.Float64("cost", fill.Cost),
	)
	return fill, nil
}
