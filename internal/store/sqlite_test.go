package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-delta/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "engineered.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "engineered.csv", got.Source)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, 0, got.Customers)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "in.csv")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, 42))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 42, got.Customers)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "in.csv")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}

func TestSQLite_CompleteRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "nope", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: nope")
}

func TestSQLite_SaveAndListPairs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "in.csv")
	require.NoError(t, err)

	pairs := []model.ReportPair{
		{CustomerNo: "C2", CustomerInfo: "info 2", CustomerCreditUpdate: "Bad:- x\n"},
		{CustomerNo: "C1", CustomerInfo: "info 1", CustomerCreditUpdate: "Good:- y\n"},
	}
	require.NoError(t, st.SavePairs(ctx, run.ID, pairs))

	got, err := st.ListPairs(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, pairs, got)
}

func TestSQLite_SavePairs_Upserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "in.csv")
	require.NoError(t, err)

	require.NoError(t, st.SavePairs(ctx, run.ID, []model.ReportPair{
		{CustomerNo: "C1", CustomerInfo: "old", CustomerCreditUpdate: "old"},
	}))
	require.NoError(t, st.SavePairs(ctx, run.ID, []model.ReportPair{
		{CustomerNo: "C1", CustomerInfo: "new", CustomerCreditUpdate: "new"},
	}))

	got, err := st.ListPairs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].CustomerInfo)
}

func TestSQLite_SavePairs_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.SavePairs(context.Background(), "any", nil))
}

func TestSQLite_ListPairs_SeparatesRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "a.csv")
	require.NoError(t, err)
	b, err := st.CreateRun(ctx, "b.csv")
	require.NoError(t, err)

	require.NoError(t, st.SavePairs(ctx, a.ID, []model.ReportPair{{CustomerNo: "C1"}}))
	require.NoError(t, st.SavePairs(ctx, b.ID, []model.ReportPair{{CustomerNo: "C1"}, {CustomerNo: "C2"}}))

	got, err := st.ListPairs(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = st.ListPairs(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		st, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"), nil)
		require.NoError(t, err)
		defer st.Close() //nolint:errcheck
		_, ok := st.(*SQLiteStore)
		assert.True(t, ok)
	})

	t.Run("postgres without url", func(t *testing.T) {
		_, err := Open(ctx, "postgres", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a database URL")
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(ctx, "mysql", "x", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported driver")
	})
}

func TestSaveRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	pairs := []model.ReportPair{{CustomerNo: "C1", CustomerInfo: "i", CustomerCreditUpdate: "u"}}
	runID, err := SaveRun(ctx, st, "cli", pairs)
	require.NoError(t, err)

	run, err := st.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 1, run.Customers)

	got, err := st.ListPairs(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, pairs, got)
}
