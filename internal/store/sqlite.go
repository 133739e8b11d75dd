package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.RWMutex
	horizon time.Duration
	clock   clockwork.Clock
}

// NewSQLiteStore opens (or creates) an observation database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string, horizon time.Duration, opts ...Option) (*SQLiteStore, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	o := buildOptions(opts)
	s := &SQLiteStore{db: db, horizon: horizon, clock: o.clock}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		obs_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		value REAL NOT NULL,
		labels TEXT,
		observed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_observed_at ON observations(observed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends observations in a single transaction.
func (s *SQLiteStore) Record(ctx context.Context, obs ...Observation) error {
	if len(obs) == 0 {
		return nil
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO observations (obs_key, kind, value, labels, observed_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		observedAt := o.ObservedAt
		if observedAt.IsZero() {
			observedAt = now
		}
		var labels []byte
		if len(o.Labels) > 0 {
			if labels, err = json.Marshal(o.Labels); err != nil {
				return fmt.Errorf("marshal labels: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, o.Key, o.Kind, o.Value, labels, observedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	return nil
}

// Recent returns observations at or after since, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, since time.Time) ([]Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT obs_key, kind, value, labels, observed_at FROM observations WHERE observed_at >= ? ORDER BY observed_at, id",
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		var labels []byte
		var observedAt int64
		if err := rows.Scan(&o.Key, &o.Kind, &o.Value, &labels, &observedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.ObservedAt = time.Unix(0, observedAt)
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &o.Labels); err != nil {
				return nil, fmt.Errorf("unmarshal labels: %w", err)
			}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// EvictStale deletes observations older than now minus the horizon.
func (s *SQLiteStore) EvictStale(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.horizon)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhere(ctx, "DELETE FROM observations WHERE observed_at < ?", cutoff.UnixNano())
}

// Clear deletes every observation.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhere(ctx, "DELETE FROM observations")
}

func (s *SQLiteStore) deleteWhere(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete observations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Len reports the number of observations held.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// Horizon returns the staleness horizon.
func (s *SQLiteStore) Horizon() time.Duration { return s.horizon }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
