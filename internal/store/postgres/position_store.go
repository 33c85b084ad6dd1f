package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Upsert writes the full position row, keyed by market.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			market_id, asset, strategy, state, leg1_side, leg1_price, leg1_size,
			leg1_token_id, opened_at, leg2_price, leg2_size, hedged_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (market_id) DO UPDATE SET
			state = EXCLUDED.state,
			leg2_price = EXCLUDED.leg2_price,
			leg2_size = EXCLUDED.leg2_size,
			hedged_at = EXCLUDED.hedged_at,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		p.MarketID, p.Asset, p.Strategy, string(p.State), string(p.Leg1Side),
		p.Leg1Price, p.Leg1Size, p.Leg1TokenID, p.OpenedAt,
		nullableFloat(p.Leg2Price), nullableFloat(p.Leg2Size), p.HedgedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.MarketID, err)
	}
	return nil
}

// Delete removes the position row for a market. Deleting a missing row is
// not an error; settlement may race a restart.
func (s *PositionStore) Delete(ctx context.Context, marketID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE market_id = $1`, marketID); err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", marketID, err)
	}
	return nil
}

// ListOpen returns every persisted position that has not yet expired.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	const query = `
		SELECT market_id, asset, strategy, state, leg1_side, leg1_price, leg1_size,
			leg1_token_id, opened_at, leg2_price, leg2_size, hedged_at
		FROM positions
		WHERE state IN ($1, $2)`

	rows, err := s.pool.Query(ctx, query,
		string(domain.PositionLeg1Open), string(domain.PositionHedged))
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var (
			p            domain.Position
			state, side  string
			leg2P, leg2S *float64
		)
		if err := rows.Scan(&p.MarketID, &p.Asset, &p.Strategy, &state, &side,
			&p.Leg1Price, &p.Leg1Size, &p.Leg1TokenID, &p.OpenedAt,
			&leg2P, &leg2S, &p.HedgedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.State = domain.PositionState(state)
		p.Leg1Side = domain.Side(side)
		if leg2P != nil {
			p.Leg2Price = *leg2P
		}
		if leg2S != nil {
			p.Leg2Size = *leg2S
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate positions: %w", err)
	}
	return out, nil
}

// nullableFloat maps the zero value to NULL so unhedged rows read back as
// absent rather than zero-priced.
func nullableFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
