package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert records a settled trade.
func (s *TradeStore) Insert(ctx context.Context, o domain.TradeOutcome) error {
	const query = `
		INSERT INTO trades (market_id, asset, side, strategy, entry_price, size, pnl, won, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		o.MarketID, o.Asset, string(o.Side), o.Strategy,
		o.EntryPrice, o.Size, o.PnL, o.Won, o.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade for market %s: %w", o.MarketID, err)
	}
	return nil
}

// ListRecent returns the most recently settled trades, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeOutcome, error) {
	const query = `
		SELECT id, market_id, asset, side, strategy, entry_price, size, pnl, won, settled_at
		FROM trades
		ORDER BY settled_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeOutcome
	for rows.Next() {
		var (
			o    domain.TradeOutcome
			side string
		)
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Asset, &side, &o.Strategy,
			&o.EntryPrice, &o.Size, &o.PnL, &o.Won, &o.SettledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		o.Side = domain.Side(side)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate trades: %w", err)
	}
	return out, nil
}

// WinRate returns the fraction of winning trades for an asset and strategy
// since the given time, along with the number of trades counted. Zero trades
// yields a zero win rate, not an error.
func (s *TradeStore) WinRate(ctx context.Context, asset, strategy string, since time.Time) (float64, int, error) {
	const query = `
		SELECT COUNT(*) FILTER (WHERE won), COUNT(*)
		FROM trades
		WHERE asset = $1 AND strategy = $2 AND settled_at >= $3`

	var wins, total int
	if err := s.pool.QueryRow(ctx, query, asset, strategy, since).Scan(&wins, &total); err != nil {
		return 0, 0, fmt.Errorf("postgres: win rate for %s/%s: %w", asset, strategy, err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(wins) / float64(total), total, nil
}
