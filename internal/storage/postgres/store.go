package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jitscope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS simulation_results (
	candidate_id    TEXT        NOT NULL,
	kind            TEXT        NOT NULL,
	pool_address    TEXT        NOT NULL,
	success         BOOLEAN     NOT NULL,
	profitable      BOOLEAN     NOT NULL,
	tick_lower      INTEGER     NOT NULL,
	tick_upper      INTEGER     NOT NULL,
	lender          TEXT        NOT NULL DEFAULT '',
	fees_earned     NUMERIC     NOT NULL,
	gas_cost        NUMERIC     NOT NULL,
	borrow_fee      NUMERIC     NOT NULL,
	net_profit      NUMERIC     NOT NULL,
	net_profit_usd  NUMERIC     NOT NULL,
	reason          TEXT        NOT NULL DEFAULT '',
	simulated_at    TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (candidate_id, kind)
);
CREATE TABLE IF NOT EXISTS scan_state (
	name        TEXT PRIMARY KEY,
	last_line   BIGINT      NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store persists simulation results in Postgres.
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

// EnsureSchema creates the result and scan state tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutResults upserts result records keyed by candidate and kind.
func (s *Store) PutResults(ctx context.Context, results []model.ResultRecord) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(`
			INSERT INTO simulation_results (
				candidate_id, kind, pool_address, success, profitable, tick_lower, tick_upper,
				lender, fees_earned, gas_cost, borrow_fee, net_profit, net_profit_usd, reason,
				simulated_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13::numeric,$14,$15::timestamptz,now(),now())
			ON CONFLICT (candidate_id, kind)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				success = EXCLUDED.success,
				profitable = EXCLUDED.profitable,
				tick_lower = EXCLUDED.tick_lower,
				tick_upper = EXCLUDED.tick_upper,
				lender = EXCLUDED.lender,
				fees_earned = EXCLUDED.fees_earned,
				gas_cost = EXCLUDED.gas_cost,
				borrow_fee = EXCLUDED.borrow_fee,
				net_profit = EXCLUDED.net_profit,
				net_profit_usd = EXCLUDED.net_profit_usd,
				reason = EXCLUDED.reason,
				simulated_at = EXCLUDED.simulated_at,
				updated_at = now()
		`,
			r.CandidateID,
			string(r.Kind),
			r.Pool,
			r.Success,
			r.Profitable,
			r.TickLower,
			r.TickUpper,
			r.Lender,
			r.FeesEarned,
			r.GasCost,
			r.BorrowFee,
			r.NetProfit,
			r.NetProfitUSD,
			r.Reason,
			r.SimulatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert result: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed input line for a scan name.
func (s *Store) LoadState(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var line int64
	row := s.pool.QueryRow(ctx, `SELECT last_line FROM scan_state WHERE name=$1`, name)
	if err := row.Scan(&line); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return line, true, nil
}

// SaveState upserts the last processed input line for a scan name.
func (s *Store) SaveState(ctx context.Context, name string, line int64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_state (name, last_line, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_line = EXCLUDED.last_line, updated_at = now()
	`, name, line)
	return err
}
