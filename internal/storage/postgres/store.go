package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tagScope/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for valuation snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertMarketCaps inserts or updates community market-cap snapshots.
func (s *Store) UpsertMarketCaps(ctx context.Context, records []model.MarketCapRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO community_marketcaps (
				tick, snapshot_at, name, token, is_import, price_base, supply, base_price_usd, market_cap_usd, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (tick, snapshot_at)
			DO UPDATE SET
				name = EXCLUDED.name,
				token = EXCLUDED.token,
				is_import = EXCLUDED.is_import,
				price_base = EXCLUDED.price_base,
				supply = EXCLUDED.supply,
				base_price_usd = EXCLUDED.base_price_usd,
				market_cap_usd = EXCLUDED.market_cap_usd,
				updated_at = now()
		`,
			r.Tick,
			r.SnapshotAt,
			r.Name,
			r.Token,
			r.IsImport,
			r.PriceBase,
			r.Supply,
			r.BasePriceUSD,
			r.MarketCapUSD,
		)
	}
	return s.sendBatch(ctx, batch, len(records))
}

// UpsertAgentRewards inserts or updates agent reward snapshots.
func (s *Store) UpsertAgentRewards(ctx context.Context, totals []model.AgentRewardTotal) error {
	if len(totals) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range totals {
		batch.Queue(`
			INSERT INTO agent_rewards (
				agent_id, snapshot_at, name, username, reward_items, priced_items, rewards_usd, total_claws, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (agent_id, snapshot_at)
			DO UPDATE SET
				name = EXCLUDED.name,
				username = EXCLUDED.username,
				reward_items = EXCLUDED.reward_items,
				priced_items = EXCLUDED.priced_items,
				rewards_usd = EXCLUDED.rewards_usd,
				total_claws = EXCLUDED.total_claws,
				updated_at = now()
		`,
			t.AgentID,
			t.SnapshotAt,
			t.Name,
			t.Username,
			t.RewardItems,
			t.PricedItems,
			t.RewardsUSD,
			t.TotalClaws,
		)
	}
	return s.sendBatch(ctx, batch, len(totals))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last snapshot unix time recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_snapshot_ts FROM snapshot_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts the last snapshot unix time for name.
func (s *Store) SaveState(ctx context.Context, name string, ts int64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshot_state (name, last_snapshot_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_snapshot_ts = EXCLUDED.last_snapshot_ts, updated_at = now()
	`, name, ts)
	return err
}
