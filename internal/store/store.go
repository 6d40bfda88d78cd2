// Package store persists narrative runs and the report pairs they produce.
package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/model"
)

// Store defines the persistence interface for report generation runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, customers int) error
	FailRun(ctx context.Context, runID string) error

	// Report pairs
	SavePairs(ctx context.Context, runID string, pairs []model.ReportPair) error
	ListPairs(ctx context.Context, runID string) ([]model.ReportPair, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// DefaultSQLitePath is used when the sqlite driver has no database URL.
const DefaultSQLitePath = "credit-delta.db"

// Open connects to the store selected by driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite", "":
		dsn := databaseURL
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		return NewSQLite(dsn)
	case "postgres":
		if databaseURL == "" {
			return nil, eris.New("store: postgres driver requires a database URL")
		}
		return NewPostgres(ctx, databaseURL, poolCfg)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

// SaveRun records a completed run holding pairs and returns its id. The run
// is marked failed when the pairs cannot be saved.
func SaveRun(ctx context.Context, st Store, source string, pairs []model.ReportPair) (string, error) {
	run, err := st.CreateRun(ctx, source)
	if err != nil {
		return "", err
	}
	if err := st.SavePairs(ctx, run.ID, pairs); err != nil {
		if ferr := st.FailRun(ctx, run.ID); ferr != nil {
			zap.L().Warn("store: mark run failed", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return "", err
	}
	if err := st.CompleteRun(ctx, run.ID, len(pairs)); err != nil {
		return "", err
	}
	zap.L().Info("store: run saved", zap.String("run_id", run.ID), zap.Int("customers", len(pairs)))
	return run.ID, nil
}
