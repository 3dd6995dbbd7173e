// Package store stages raw events in SQLite and groups them into hourly buckets.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver.
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Bucket is the mean click of one hour bucket. Click is NaN when the
// mean is undefined.
type Bucket struct {
	Hour  int64
	Click float64
	Count int64
}

// Store wraps the SQLite staging database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the staging database and applies migrations.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode = OFF;`,
		`PRAGMA synchronous = OFF;`,
		`CREATE TABLE IF NOT EXISTS events (
			hour INTEGER NOT NULL,
			click REAL NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Batch accumulates events inside one transaction.
type Batch struct {
	tx   *sql.Tx
	stmt *sql.Stmt
	n    int
}

// Begin starts a batch of inserts.
func (s *Store) Begin(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (hour, click) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &Batch{tx: tx, stmt: stmt}, nil
}

// Add stages one event.
func (b *Batch) Add(ctx context.Context, hour int64, click float64) error {
	if _, err := b.stmt.ExecContext(ctx, hour, click); err != nil {
		return err
	}
	b.n++
	return nil
}

// Len returns the number of events staged in the batch.
func (b *Batch) Len() int {
	return b.n
}

// Commit commits the batch.
func (b *Batch) Commit() error {
	if err := b.stmt.Close(); err != nil {
		_ = b.tx.Rollback()
		return err
	}
	return b.tx.Commit()
}

// Rollback discards the batch.
func (b *Batch) Rollback() error {
	_ = b.stmt.Close()
	return b.tx.Rollback()
}

// Count returns the number of staged events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// HourlyMeans groups staged events by hour in ascending order.
func (s *Store) HourlyMeans(ctx context.Context) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour, AVG(click) AS click, COUNT(*) AS n
		 FROM events
		 GROUP BY hour
		 ORDER BY hour ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to group events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []Bucket
	for rows.Next() {
		var b Bucket
		var mean sql.NullFloat64
		if err := rows.Scan(&b.Hour, &mean, &b.Count); err != nil {
			return nil, err
		}
		// SQLite stores a NaN mean as NULL.
		b.Click = math.NaN()
		if mean.Valid {
			b.Click = mean.Float64
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
