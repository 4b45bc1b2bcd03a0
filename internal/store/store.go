// Package store holds the Postgres persistence layer: users, companies,
// transactions and anomalies. Reads that precede a mutation run in the same
// transaction as the mutation; callers mark the scope by obtaining a *sql.Tx
// through BeginTx and passing it down.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so store methods can run
// inside or outside an explicit transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the shared connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the pool for non-transactional reads.
func (s *Store) DB() Querier { return s.db }

// IsUniqueViolation reports whether err is a Postgres unique-index conflict
// (SQLSTATE 23505). Services map it to their own conflict failure: a
// read-then-insert check cannot rule out a concurrent insert, the index can.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Ping reports connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close shuts down the pool.
func (s *Store) Close() error { return s.db.Close() }

// BeginTx opens a transaction. The caller must Commit or Rollback.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// InTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
