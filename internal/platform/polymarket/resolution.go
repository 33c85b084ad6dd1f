package polymarket

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface check.
var _ domain.ResolutionFeed = (*ResolutionPoller)(nil)

// ResolutionPoller watches a set of markets and emits a Resolution once the
// venue publishes a winner. The watchlist callback is queried each cycle so
// the poller always tracks exactly the markets with live positions.
type ResolutionPoller struct {
	gamma     *GammaClient
	watchlist func() []string
	interval  time.Duration
	logger    *slog.Logger
}

// NewResolutionPoller creates a poller over the given Gamma client.
func NewResolutionPoller(gamma *GammaClient, watchlist func() []string, interval time.Duration, logger *slog.Logger) *ResolutionPoller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ResolutionPoller{
		gamma:     gamma,
		watchlist: watchlist,
		interval:  interval,
		logger:    logger.With(slog.String("component", "resolution_poller")),
	}
}

// Resolutions starts the polling goroutine and returns its output channel.
// Each market resolves exactly once; the channel closes when ctx ends.
func (p *ResolutionPoller) Resolutions(ctx context.Context) (<-chan domain.Resolution, error) {
	out := make(chan domain.Resolution)
	go func() {
		defer close(out)

		seen := make(map[string]struct{})
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			for _, marketID := range p.watchlist() {
				if _, done := seen[marketID]; done {
					continue
				}
				res, resolved, err := p.gamma.Resolution(ctx, marketID)
				if err != nil {
					p.logger.Warn("resolution check failed",
						slog.String("market", marketID),
						slog.String("error", err.Error()),
					)
					continue
				}
				if !resolved {
					continue
				}
				seen[marketID] = struct{}{}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
