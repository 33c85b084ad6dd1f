package app

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface check.
var _ domain.ExecutionGateway = (*PaperGateway)(nil)

// PaperGateway simulates order execution for paper trading: every order fills
// immediately at its requested price and size. The rest of the pipeline runs
// exactly as in live mode.
type PaperGateway struct {
	seq    atomic.Int64
	logger *slog.Logger
}

// NewPaperGateway creates a PaperGateway.
func NewPaperGateway(logger *slog.Logger) *PaperGateway {
	return &PaperGateway{logger: logger.With(slog.String("component", "paper_gateway"))}
}

// SubmitOrder accepts the order unconditionally.
func (g *PaperGateway) SubmitOrder(_ context.Context, order domain.Order) (domain.OrderResult, error) {
	n := g.seq.Add(1)
	g.logger.Info("paper fill",
		slog.String("order_id", order.ID),
		slog.String("token", order.TokenID),
		slog.Float64("price", order.Price),
		slog.Float64("shares", order.Shares),
	)
	return domain.OrderResult{
		Success:      true,
		OrderID:      "paper-" + strconv.FormatInt(n, 10),
		FilledShares: order.Shares,
		FilledPrice:  order.Price,
	}, nil
}
