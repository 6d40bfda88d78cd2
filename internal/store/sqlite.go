package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/credit-delta/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	customers  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS report_pairs (
	run_id                 TEXT NOT NULL REFERENCES runs(id),
	customer_no            TEXT NOT NULL,
	customer_info          TEXT NOT NULL,
	customer_credit_update TEXT NOT NULL,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, customer_no)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_report_pairs_customer ON report_pairs(customer_no);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, customers, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.Source, &r.Status, &r.Customers, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return &r, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, customers int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, customers = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), customers, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// SavePairs upserts pairs for the run in a single transaction.
func (s *SQLiteStore) SavePairs(ctx context.Context, runID string, pairs []model.ReportPair) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save pairs")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_pairs (run_id, customer_no, customer_info, customer_credit_update)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, customer_no) DO UPDATE SET
		   customer_info = excluded.customer_info,
		   customer_credit_update = excluded.customer_credit_update`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save pairs")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, runID, p.CustomerNo, p.CustomerInfo, p.CustomerCreditUpdate); err != nil {
			return eris.Wrapf(err, "sqlite: save pair %s", p.CustomerNo)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save pairs")
}

func (s *SQLiteStore) ListPairs(ctx context.Context, runID string) ([]model.ReportPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_no, customer_info, customer_credit_update FROM report_pairs
		 WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list pairs %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var pairs []model.ReportPair
	for rows.Next() {
		var p model.ReportPair
		if err := rows.Scan(&p.CustomerNo, &p.CustomerInfo, &p.CustomerCreditUpdate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, eris.Wrap(rows.Err(), "sqlite: list pairs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
