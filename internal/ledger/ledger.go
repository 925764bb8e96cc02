// Package ledger keeps a history of harvest runs in a SQL database.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one harvest as recorded in the ledger.
type Run struct {
	ID         string    `db:"id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Status     string    `db:"status"`
	Tables     int       `db:"tables"`
	OutputDir  string    `db:"output_dir"`
	Error      string    `db:"error"`

	Failures []Failure `db:"-"`
}

// Failure is a database whose harvest failed without failing the run.
type Failure struct {
	Database string `db:"database_name"`
	Error    string `db:"error"`
}

type Ledger struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the ledger at databaseURL and creates its tables if needed.
func Open(ctx context.Context, databaseURL string) (*Ledger, error) {
	driver, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger URL: %w", err)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	l := &Ledger{db: db, driver: driver}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// ParseDatabaseURL maps a ledger URL onto a registered driver name and its DSN.
func ParseDatabaseURL(databaseURL string) (driver, dsn string, err error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", databaseURL, nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(databaseURL, u.Scheme+"://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite ledger URL needs a path")
		}
		return "sqlite3", path, nil
	default:
		return "", "", fmt.Errorf("unsupported ledger scheme: %s", u.Scheme)
	}
}

// Driver names the SQL driver the ledger runs on.
func (l *Ledger) Driver() string {
	return l.driver
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// NewRunID returns a fresh identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// Record stores a finished run and its isolated failures in one transaction.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	tx, err := l.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `INSERT INTO harvest_runs
		(id, started_at, finished_at, status, tables, output_dir, error)
		VALUES (:id, :started_at, :finished_at, :status, :tables, :output_dir, :error)`, run)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert harvest run: %w", err)
	}

	insertFailure := tx.Rebind(`INSERT INTO harvest_failures (run_id, database_name, error) VALUES (?, ?, ?)`)
	for _, f := range run.Failures {
		if _, err := tx.ExecContext(ctx, insertFailure, run.ID, f.Database, f.Error); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert harvest failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their failures.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	query := l.db.Rebind(`SELECT id, started_at, finished_at, status, tables, output_dir, error
		FROM harvest_runs ORDER BY started_at DESC LIMIT ?`)
	if err := l.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("select harvest runs: %w", err)
	}

	failuresQuery := l.db.Rebind(`SELECT database_name, error FROM harvest_failures WHERE run_id = ? ORDER BY database_name`)
	for i := range runs {
		if err := l.db.SelectContext(ctx, &runs[i].Failures, failuresQuery, runs[i].ID); err != nil {
			return nil, fmt.Errorf("select harvest failures: %w", err)
		}
	}
	return runs, nil
}

func (l *Ledger) migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ledger schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS harvest_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		tables INTEGER NOT NULL,
		output_dir TEXT NOT NULL,
		error TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS harvest_failures (
		run_id TEXT NOT NULL REFERENCES harvest_runs(id),
		database_name TEXT NOT NULL,
		error TEXT NOT NULL
	)`,
}
