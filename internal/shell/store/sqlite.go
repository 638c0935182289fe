package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultStateName keys the state row when no name is configured.
const DefaultStateName = "default"

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements StateStore and Journal using SQLite. The state is
// kept as the same JSON document FileStore writes, one row per state name.
type SQLiteStore struct {
	db   *sqlx.DB
	name string
}

// NewSQLiteStore opens the database at dsn and runs migrations. name keys the
// state row so several projects can share one database.
func NewSQLiteStore(dsn, name string) (*SQLiteStore, error) {
	if name == "" {
		name = DefaultStateName
	}

	db, err := sqlx.Open("sqlite3", withParams(dsn, "_busy_timeout=5000"))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db, name: name}, nil
}

func withParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// State Operations
// =============================================================================

// Load reads the state row. A missing row yields the default state.
func (s *SQLiteStore) Load(ctx context.Context) (*deployment.State, error) {
	var document string
	err := s.db.GetContext(ctx, &document, `SELECT document FROM deployment_state WHERE name = ?`, s.name)
	if errors.Is(err, sql.ErrNoRows) {
		return deployment.DefaultState(), nil
	}
	if err != nil {
		return nil, NewStoreError("Load", "state", s.name, err.Error(), ErrReadFailed)
	}

	state, err := deployment.Decode([]byte(document))
	if err != nil {
		return nil, NewStoreError("Load", "state", s.name, err.Error(), ErrInvalidData)
	}
	return state, nil
}

// Save replaces the state row inside a transaction.
func (s *SQLiteStore) Save(ctx context.Context, state *deployment.State) error {
	data, err := deployment.Encode(state)
	if err != nil {
		return NewStoreError("Save", "state", s.name, err.Error(), deployment.ErrPersistence)
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deployment_state (name, document, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
			s.name, string(data), time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return NewStoreError("Save", "state", s.name, err.Error(), deployment.ErrPersistence)
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// =============================================================================
// Journal Operations
// =============================================================================

// operationRow represents an operations row in the database.
type operationRow struct {
	ID               string         `db:"id"`
	Project          string         `db:"project"`
	Action           string         `db:"action"`
	Version          string         `db:"version"`
	Port             int            `db:"port"`
	PreviousLivePort sql.NullInt64  `db:"previous_live_port"`
	Phase            string         `db:"phase"`
	ObservedStatus   string         `db:"observed_status"`
	Error            string         `db:"error"`
	CleanupFailed    bool           `db:"cleanup_failed"`
	StartedAt        string         `db:"started_at"`
	FinishedAt       sql.NullString `db:"finished_at"`
}

// RecordOperation upserts an operation by ID.
func (s *SQLiteStore) RecordOperation(ctx context.Context, op *deployment.Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now().UTC()
	}

	row := operationToRow(op)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO operations (
			id, project, action, version, port, previous_live_port, phase,
			observed_status, error, cleanup_failed, started_at, finished_at
		) VALUES (
			:id, :project, :action, :version, :port, :previous_live_port, :phase,
			:observed_status, :error, :cleanup_failed, :started_at, :finished_at
		)
		ON CONFLICT(id) DO UPDATE SET
			port = excluded.port,
			previous_live_port = excluded.previous_live_port,
			phase = excluded.phase,
			observed_status = excluded.observed_status,
			error = excluded.error,
			cleanup_failed = excluded.cleanup_failed,
			finished_at = excluded.finished_at`, row)
	if err != nil {
		return NewStoreError("RecordOperation", "operation", op.ID, err.Error(), ErrTxFailed)
	}
	return nil
}

// ListOperations returns operations newest first.
func (s *SQLiteStore) ListOperations(ctx context.Context, project string, opts ListOptions) ([]deployment.Operation, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM operations`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []operationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListOperations", "operation", "", err.Error(), ErrReadFailed)
	}

	ops := make([]deployment.Operation, 0, len(rows))
	for _, row := range rows {
		op, err := rowToOperation(row)
		if err != nil {
			return nil, NewStoreError("ListOperations", "operation", row.ID, err.Error(), ErrInvalidData)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func operationToRow(op *deployment.Operation) operationRow {
	row := operationRow{
		ID:             op.ID,
		Project:        op.Project,
		Action:         string(op.Action),
		Version:        op.Version,
		Port:           op.Port,
		Phase:          string(op.Phase),
		ObservedStatus: string(op.Observed),
		Error:          op.Error,
		CleanupFailed:  op.CleanupFailed,
		StartedAt:      op.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	if op.PreviousLive != nil {
		row.PreviousLivePort = sql.NullInt64{Int64: int64(*op.PreviousLive), Valid: true}
	}
	if op.FinishedAt != nil {
		row.FinishedAt = sql.NullString{String: op.FinishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	return row
}

func rowToOperation(row operationRow) (deployment.Operation, error) {
	op := deployment.Operation{
		ID:            row.ID,
		Project:       row.Project,
		Action:        deployment.Action(row.Action),
		Version:       row.Version,
		Port:          row.Port,
		Phase:         deployment.Phase(row.Phase),
		Observed:      deployment.Status(row.ObservedStatus),
		Error:         row.Error,
		CleanupFailed: row.CleanupFailed,
	}

	started, err := time.Parse(time.RFC3339Nano, row.StartedAt)
	if err != nil {
		return op, fmt.Errorf("started_at: %w", err)
	}
	op.StartedAt = started

	if row.PreviousLivePort.Valid {
		live := int(row.PreviousLivePort.Int64)
		op.PreviousLive = &live
	}
	if row.FinishedAt.Valid {
		finished, err := time.Parse(time.RFC3339Nano, row.FinishedAt.String)
		if err != nil {
			return op, fmt.Errorf("finished_at: %w", err)
		}
		op.FinishedAt = &finished
	}
	return op, nil
}
