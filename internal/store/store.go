// Package store persists dispatch traces to SQLite.
//
// The store is telemetry only: it records what the observable runtime
// dispatched, for later inspection with `vigil trace`. Subscriptions
// themselves are never persisted; they live and die with the process.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for dispatch traces.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Event is one persisted dispatch record. Row order within a run is defined
// by Seq, the runtime's logical clock stamp.
type Event struct {
	RunToken  string    `json:"run_token"`
	Seq       int64     `json:"seq"`
	Cycle     string    `json:"cycle"`
	Class     string    `json:"class"`
	Property  string    `json:"property"`
	Phase     string    `json:"phase"`
	Value     string    `json:"value"` // JSON-encoded dispatched value
	Observers int       `json:"observers"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically; safe to call on an
// existing database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteEvent inserts one dispatch record. Duplicate (run, seq) pairs are
// silently ignored so replayed writes stay idempotent.
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_events
		(run_token, seq, cycle, class, property, phase, value, observers, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		ev.RunToken,
		ev.Seq,
		ev.Cycle,
		ev.Class,
		ev.Property,
		ev.Phase,
		ev.Value,
		ev.Observers,
		ev.Error,
		ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write dispatch event: %w", err)
	}
	return nil
}

// ReadRun returns all dispatch events of one run, ordered by seq.
// Returns an empty slice (not nil) when the run has no records.
func (s *Store) ReadRun(ctx context.Context, runToken string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, seq, cycle, class, property, phase, value, observers, error, created_at
		FROM dispatch_events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("query dispatch events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var createdAt string
		if err := rows.Scan(&ev.RunToken, &ev.Seq, &ev.Cycle, &ev.Class, &ev.Property,
			&ev.Phase, &ev.Value, &ev.Observers, &ev.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dispatch event: %w", err)
		}
		if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch events: %w", err)
	}
	return events, nil
}

// Runs returns the distinct run tokens present in the store, oldest first.
// Run tokens are UUIDv7, so lexical order is creation order.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT run_token FROM dispatch_events ORDER BY run_token ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		runs = append(runs, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// EncodeValue renders a dispatched value for storage. Values that cannot be
// JSON-encoded fall back to their Go string rendering so a trace row is
// never lost to an exotic value type.
func EncodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
