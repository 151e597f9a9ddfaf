package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/storage"
)

var moduleColumns = []string{
	"board_name", "url", "region", "module_id", "package_name", "function_name",
	"source_text", "selectors", "success", "state", "static_attempts", "live_attempts",
	"record_count", "run_id", "generated_at", "updated_at",
}

func newStore(t *testing.T) (*storage.ModuleStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return storage.NewModuleStore(db, logger.NewNop()), mock
}

func TestModuleStore_Save(t *testing.T) {
	store, mock := newStore(t)

	board := domain.BoardSource{Name: "Incheon", URL: "https://ice.example/list", Region: "인천"}
	module := domain.SynthesizedModule{
		ID:           "mod-1",
		SourceText:   "package boards",
		Selectors:    domain.SelectorSet{Rows: []string{"table tr"}},
		GeneratedAt:  time.Now(),
		PackageName:  "boards",
		FunctionName: "CrawlIncheon",
	}
	outcome := &pipeline.Outcome{
		RunID:    "run-1",
		Success:  true,
		State:    domain.StateDoneSuccess,
		Attempts: pipeline.Attempts{Static: 1, Live: 2},
		Records:  []domain.Record{{Title: "a"}, {Title: "b"}},
	}

	mock.ExpectExec("INSERT INTO board_modules .+ ON CONFLICT \\(board_name\\) DO UPDATE").
		WithArgs(
			"Incheon", "https://ice.example/list", "인천",
			"mod-1", "boards", "CrawlIncheon",
			"package boards", sqlmock.AnyArg(),
			true, "DONE_SUCCESS", 1, 2, 2,
			"run-1", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), board, module, outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleStore_Save_RequiresOutcome(t *testing.T) {
	store, mock := newStore(t)

	err := store.Save(context.Background(), domain.BoardSource{Name: "x"}, domain.SynthesizedModule{}, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleStore_Save_DatabaseError(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec("INSERT INTO board_modules").WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), domain.BoardSource{Name: "Incheon"}, domain.SynthesizedModule{},
		&pipeline.Outcome{State: domain.StateDoneExhausted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestModuleStore_Get(t *testing.T) {
	store, mock := newStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM board_modules WHERE board_name").
		WithArgs("Incheon").
		WillReturnRows(sqlmock.NewRows(moduleColumns).AddRow(
			"Incheon", "https://ice.example/list", "인천", "mod-1", "boards", "CrawlIncheon",
			"package boards", []byte(`{"rows":["table tr","tr"],"uses_table":true}`),
			true, "DONE_SUCCESS", 0, 1, 12, "run-1", now, now,
		))

	row, err := store.Get(context.Background(), "Incheon")
	require.NoError(t, err)
	assert.Equal(t, "CrawlIncheon", row.FunctionName)
	assert.Equal(t, 12, row.RecordCount)

	module, err := row.Module()
	require.NoError(t, err)
	assert.Equal(t, "boards.CrawlIncheon", module.Symbol())
	assert.Equal(t, []string{"table tr", "tr"}, module.Selectors.Rows)
	assert.True(t, module.Selectors.UsesTable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleStore_Get_NotFound(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery("SELECT .+ FROM board_modules").
		WithArgs("Busan").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "Busan")
	require.ErrorIs(t, err, storage.ErrModuleNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleStore_List_Empty(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery("SELECT .+ FROM board_modules").
		WithArgs(true, 20).
		WillReturnRows(sqlmock.NewRows(moduleColumns))

	rows, err := store.List(context.Background(), true, 20)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestModuleStore_Delete(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec("DELETE FROM board_modules").
		WithArgs("Incheon").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM board_modules").
		WithArgs("Busan").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "Incheon"))
	require.ErrorIs(t, store.Delete(context.Background(), "Busan"), storage.ErrModuleNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleStore_EnsureSchema(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS board_modules").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig_DSN(t *testing.T) {
	t.Parallel()

	cfg := storage.Config{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "boards"}
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=boards sslmode=disable", cfg.DSN())
	assert.False(t, storage.Config{}.Enabled())
}
