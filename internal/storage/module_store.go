package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/pipeline"
)

// ErrModuleNotFound is returned when no module is stored for a board.
var ErrModuleNotFound = errors.New("module not found")

// Schema creates the board_modules table.
const Schema = `
CREATE TABLE IF NOT EXISTS board_modules (
	board_name      TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	region          TEXT NOT NULL DEFAULT '',
	module_id       TEXT NOT NULL,
	package_name    TEXT NOT NULL,
	function_name   TEXT NOT NULL,
	source_text     TEXT NOT NULL,
	selectors       JSONB NOT NULL,
	success         BOOLEAN NOT NULL,
	state           TEXT NOT NULL,
	static_attempts INTEGER NOT NULL DEFAULT 0,
	live_attempts   INTEGER NOT NULL DEFAULT 0,
	record_count    INTEGER NOT NULL DEFAULT 0,
	run_id          TEXT NOT NULL,
	generated_at    TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const moduleSelectColumns = `board_name, url, region, module_id, package_name, function_name,
	source_text, selectors, success, state, static_attempts, live_attempts, record_count,
	run_id, generated_at, updated_at`

// StoredModule is one board_modules row.
type StoredModule struct {
	BoardName      string    `db:"board_name"      json:"board_name"`
	URL            string    `db:"url"             json:"url"`
	Region         string    `db:"region"          json:"region"`
	ModuleID       string    `db:"module_id"       json:"module_id"`
	PackageName    string    `db:"package_name"    json:"package_name"`
	FunctionName   string    `db:"function_name"   json:"function_name"`
	SourceText     string    `db:"source_text"     json:"source_text"`
	SelectorsJSON  []byte    `db:"selectors"       json:"-"`
	Success        bool      `db:"success"         json:"success"`
	State          string    `db:"state"           json:"state"`
	StaticAttempts int       `db:"static_attempts" json:"static_attempts"`
	LiveAttempts   int       `db:"live_attempts"   json:"live_attempts"`
	RecordCount    int       `db:"record_count"    json:"record_count"`
	RunID          string    `db:"run_id"          json:"run_id"`
	GeneratedAt    time.Time `db:"generated_at"    json:"generated_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// Module rebuilds the synthesized module from the row.
func (s *StoredModule) Module() (domain.SynthesizedModule, error) {
	var set domain.SelectorSet
	if len(s.SelectorsJSON) > 0 {
		if err := json.Unmarshal(s.SelectorsJSON, &set); err != nil {
			return domain.SynthesizedModule{}, fmt.Errorf("decode selectors for %s: %w", s.BoardName, err)
		}
	}
	return domain.SynthesizedModule{
		ID:           s.ModuleID,
		SourceText:   s.SourceText,
		Selectors:    set,
		GeneratedAt:  s.GeneratedAt,
		PackageName:  s.PackageName,
		FunctionName: s.FunctionName,
	}, nil
}

// ModuleStore keeps the latest module per board.
type ModuleStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewModuleStore creates a store on db.
func NewModuleStore(db *sqlx.DB, log logger.Logger) *ModuleStore {
	return &ModuleStore{db: db, log: log}
}

// EnsureSchema creates the table when it is missing.
func (s *ModuleStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create board_modules: %w", err)
	}
	return nil
}

// Save upserts the module a run ended with. Exhausted runs are stored too,
// flagged unsuccessful, so the last attempt stays available for review.
func (s *ModuleStore) Save(
	ctx context.Context,
	board domain.BoardSource,
	module domain.SynthesizedModule,
	outcome *pipeline.Outcome,
) error {
	if outcome == nil {
		return errors.New("save module: outcome is required")
	}

	selectors, err := json.Marshal(module.Selectors)
	if err != nil {
		return fmt.Errorf("encode selectors: %w", err)
	}

	query := `
		INSERT INTO board_modules (
			board_name, url, region, module_id, package_name, function_name,
			source_text, selectors, success, state, static_attempts, live_attempts,
			record_count, run_id, generated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (board_name) DO UPDATE SET
			url = EXCLUDED.url,
			region = EXCLUDED.region,
			module_id = EXCLUDED.module_id,
			package_name = EXCLUDED.package_name,
			function_name = EXCLUDED.function_name,
			source_text = EXCLUDED.source_text,
			selectors = EXCLUDED.selectors,
			success = EXCLUDED.success,
			state = EXCLUDED.state,
			static_attempts = EXCLUDED.static_attempts,
			live_attempts = EXCLUDED.live_attempts,
			record_count = EXCLUDED.record_count,
			run_id = EXCLUDED.run_id,
			generated_at = EXCLUDED.generated_at,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		board.Name, board.URL, board.Region,
		module.ID, module.PackageName, module.FunctionName,
		module.SourceText, selectors,
		outcome.Success, string(outcome.State),
		outcome.Attempts.Static, outcome.Attempts.Live, len(outcome.Records),
		outcome.RunID, module.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save module for %s: %w", board.Name, err)
	}

	s.log.Debug("Module stored",
		logger.Board(board.Name),
		logger.RunID(outcome.RunID),
		logger.Bool("success", outcome.Success),
	)
	return nil
}

// Get returns the stored module for a board.
func (s *ModuleStore) Get(ctx context.Context, boardName string) (*StoredModule, error) {
	query := `SELECT ` + moduleSelectColumns + ` FROM board_modules WHERE board_name = $1`

	var row StoredModule
	if err := s.db.GetContext(ctx, &row, query, boardName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, boardName)
		}
		return nil, fmt.Errorf("failed to get module for %s: %w", boardName, err)
	}
	return &row, nil
}

// List returns stored modules, most recently updated first.
func (s *ModuleStore) List(ctx context.Context, successOnly bool, limit int) ([]*StoredModule, error) {
	query := `
		SELECT ` + moduleSelectColumns + `
		FROM board_modules
		WHERE ($1 = FALSE OR success = TRUE)
		ORDER BY updated_at DESC
		LIMIT $2
	`

	var rows []*StoredModule
	if err := s.db.SelectContext(ctx, &rows, query, successOnly, limit); err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	if rows == nil {
		rows = []*StoredModule{}
	}
	return rows, nil
}

// Delete removes a board's module.
func (s *ModuleStore) Delete(ctx context.Context, boardName string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM board_modules WHERE board_name = $1`, boardName)
	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrModuleNotFound, boardName))
}

// execRequireRows turns a zero-row result into notFoundErr.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
