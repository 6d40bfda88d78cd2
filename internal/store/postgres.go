package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-delta/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	retry   retryPolicy
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const upsertPairSQL = `INSERT INTO report_pairs (run_id, customer_no, customer_info, customer_credit_update)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id, customer_no) DO UPDATE SET
	customer_info = EXCLUDED.customer_info,
	customer_credit_update = EXCLUDED.customer_credit_update`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := withRetry(ctx, defaultRetryPolicy, "ping", pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, retry: defaultRetryPolicy}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	customers  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS report_pairs (
	run_id                 TEXT NOT NULL REFERENCES runs(id),
	customer_no            TEXT NOT NULL,
	customer_info          TEXT NOT NULL,
	customer_credit_update TEXT NOT NULL,
	seq                    BIGSERIAL,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, customer_no)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_report_pairs_customer ON report_pairs(customer_no);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, source, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, status, customers, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Source, &r.Status, &r.Customers, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, customers int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, customers = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), customers, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// SavePairs upserts pairs for the run in a single transaction. A transaction
// that fails transiently is replayed whole; the upsert makes that safe.
func (s *PostgresStore) SavePairs(ctx context.Context, runID string, pairs []model.ReportPair) error {
	if len(pairs) == 0 {
		return nil
	}
	return withRetry(ctx, s.retry, "save pairs", func(ctx context.Context) error {
		return s.savePairsTx(ctx, runID, pairs)
	})
}

func (s *PostgresStore) savePairsTx(ctx context.Context, runID string, pairs []model.ReportPair) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save pairs")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, p := range pairs {
		if _, err := tx.Exec(ctx, upsertPairSQL, runID, p.CustomerNo, p.CustomerInfo, p.CustomerCreditUpdate); err != nil {
			return eris.Wrapf(err, "postgres: save pair %s", p.CustomerNo)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save pairs")
}

func (s *PostgresStore) ListPairs(ctx context.Context, runID string) ([]model.ReportPair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT customer_no, customer_info, customer_credit_update FROM report_pairs
		 WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list pairs %s", runID)
	}
	defer rows.Close()

	var pairs []model.ReportPair
	for rows.Next() {
		var p model.ReportPair
		if err := rows.Scan(&p.CustomerNo, &p.CustomerInfo, &p.CustomerCreditUpdate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, eris.Wrap(rows.Err(), "postgres: list pairs iterate")
}
