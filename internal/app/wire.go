package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/hedgebot/internal/cache/redis"
	"github.com/alanyoungcy/hedgebot/internal/config"
	"github.com/alanyoungcy/hedgebot/internal/detector"
	"github.com/alanyoungcy/hedgebot/internal/domain"
	"github.com/alanyoungcy/hedgebot/internal/ensemble"
	"github.com/alanyoungcy/hedgebot/internal/executor"
	"github.com/alanyoungcy/hedgebot/internal/feed"
	"github.com/alanyoungcy/hedgebot/internal/hedge"
	"github.com/alanyoungcy/hedgebot/internal/platform/polymarket"
	"github.com/alanyoungcy/hedgebot/internal/risk"
	"github.com/alanyoungcy/hedgebot/internal/scan"
	"github.com/alanyoungcy/hedgebot/internal/store/postgres"
)

// Dependencies holds every wired collaborator the run modes need.
type Dependencies struct {
	Loop *scan.Loop
	Feed *feed.Feed // nil when the spot feed is disabled
	Book *hedge.Book
}

// Wire builds the full dependency graph from the configuration. It returns a
// cleanup function that closes external connections in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	// Optional infrastructure: Postgres for durable trades and positions,
	// Redis for the shared price cache. The pipeline degrades to in-memory
	// state without them.
	var (
		tradeStore    domain.TradeStore
		positionStore domain.PositionStore
	)
	if cfg.Postgres.DSN != "" {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("app: connect postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if err := pg.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("app: migrate: %w", err))
		}
		tradeStore = postgres.NewTradeStore(pg.Pool())
		positionStore = postgres.NewPositionStore(pg.Pool())
	} else {
		logger.Warn("postgres disabled, trades and positions are not durable")
	}

	var priceCache domain.PriceCache
	if cfg.Redis.Addr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fail(fmt.Errorf("app: connect redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		priceCache = redis.NewPriceCache(rc, 5*time.Minute)
	}

	gamma := polymarket.NewGammaClient(polymarket.GammaConfig{
		BaseURL: cfg.Polymarket.GammaHost,
		Assets:  cfg.SpotFeed.Assets,
	}, logger)
	clob := polymarket.NewClobClient(polymarket.ClobConfig{
		BaseURL:    cfg.Polymarket.ClobHost,
		APIKey:     cfg.Polymarket.ApiKey,
		Passphrase: cfg.Polymarket.Passphrase,
	})

	var gateway domain.ExecutionGateway = clob
	if strings.ToLower(cfg.Mode) == "paper" {
		gateway = NewPaperGateway(logger)
	}

	var spotFeed *feed.Feed
	if cfg.SpotFeed.Enabled {
		spotFeed = feed.New(feed.Config{
			URL:    cfg.SpotFeed.WsURL,
			Assets: cfg.SpotFeed.Assets,
		}, logger)
	}

	sources, err := buildSources(cfg, tradeStore, logger)
	if err != nil {
		return fail(err)
	}
	engine, err := ensemble.New(ensemble.Config{
		Weights:       cfg.Ensemble.Weights,
		MinConsensus:  cfg.Ensemble.MinConsensus,
		MinConfidence: cfg.Ensemble.MinConfidence,
	}, sources, logger)
	if err != nil {
		return fail(fmt.Errorf("app: build ensemble: %w", err))
	}

	det := detector.New(detector.Config{
		Window:          secondsToDuration(cfg.Detector.WindowSeconds),
		DropThreshold:   cfg.Detector.DropThreshold,
		HistoryCapacity: cfg.Detector.HistoryCapacity,
		Cooldown:        secondsToDuration(cfg.Detector.CooldownSeconds),
	}, logger)

	book := hedge.NewBook(hedge.Config{MaxCombinedCost: cfg.Hedge.SumThreshold}, positionStore, logger)
	if err := book.Restore(ctx); err != nil {
		return fail(fmt.Errorf("app: restore positions: %w", err))
	}

	portfolio := risk.NewPortfolio(cfg.Risk.InitialBalance, logger)
	guard := risk.NewGuard(risk.GuardConfig{
		MaxConsecutiveLosses: cfg.Risk.CircuitBreakerRuns,
		MaxDailyLoss:         cfg.Risk.MaxDailyLoss,
		MaxDailyTrades:       cfg.Risk.MaxDailyTrades,
		MaxAssetExposurePct:  cfg.Risk.MaxAssetExposurePct,
		MaxSlippagePct:       cfg.Risk.MaxSlippagePct,
	}, portfolio, clob, logger)

	exec := executor.New(executor.Config{
		MinNotional:   cfg.Execution.MinNotional,
		SubmitTimeout: time.Duration(cfg.Execution.TimeoutSec) * time.Second,
		Retry: executor.RetryPolicy{
			MaxAttempts: cfg.Execution.RetryAttempts,
			BaseBackoff: time.Duration(cfg.Execution.RetryBackoffMs) * time.Millisecond,
			MaxBackoff:  time.Duration(cfg.Execution.RetryMaxMs) * time.Millisecond,
		},
	}, gateway, logger)

	watchlist := func() []string {
		open := book.ListOpen()
		ids := make([]string, 0, len(open))
		for _, p := range open {
			ids = append(ids, p.MarketID)
		}
		return ids
	}
	poller := polymarket.NewResolutionPoller(gamma, watchlist, 15*time.Second, logger)

	var spot scan.SpotReader
	if spotFeed != nil {
		spot = spotFeed
	}
	loop := scan.New(scan.Config{
		Interval:        time.Duration(cfg.Scan.IntervalMs) * time.Millisecond,
		Workers:         cfg.Scan.Workers,
		TradeNotional:   cfg.Execution.TradeSizeUSD,
		MomentumWindow:  secondsToDuration(cfg.Ensemble.MomentumWindowSec),
		MaxCombinedCost: cfg.Hedge.SumThreshold,
	}, scan.Deps{
		Markets:     gamma,
		Detector:    det,
		Book:        book,
		Engine:      engine,
		Guard:       guard,
		Portfolio:   portfolio,
		Executor:    exec,
		Trades:      tradeStore,
		Prices:      priceCache,
		Spot:        spot,
		Resolutions: poller,
	}, logger)

	return &Dependencies{Loop: loop, Feed: spotFeed, Book: book}, cleanup, nil
}

// buildSources constructs the enabled decision sources in config order.
// Sources whose backing infrastructure is not configured are dropped with a
// warning rather than failing startup.
func buildSources(cfg *config.Config, trades domain.TradeStore, logger *slog.Logger) ([]domain.Source, error) {
	var sources []domain.Source
	for _, name := range cfg.Ensemble.Enabled {
		switch strings.ToLower(name) {
		case "momentum":
			sources = append(sources, &ensemble.MomentumSource{
				DeadBandPct: cfg.Ensemble.MomentumThreshold,
			})
		case "historical":
			if trades == nil {
				logger.Warn("historical source disabled, postgres not configured")
				continue
			}
			sources = append(sources, &ensemble.HistoricalSource{
				Store:    trades,
				Strategy: scan.StrategyDirectional,
			})
		case "reasoner":
			sources = append(sources, &ensemble.ReasonerSource{
				Endpoint: cfg.Ensemble.ReasonerEndpoint,
			})
		default:
			return nil, fmt.Errorf("app: unknown decision source %q", name)
		}
	}
	return sources, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
