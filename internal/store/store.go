// Package store provides typed MySQL access to the accounts and
// accounts_history tables. Every mutating operation runs inside a short
// transaction binding one request to one database round-trip; transactions
// here never span more than a single Store method call, so there is no
// cross-request transaction registry to maintain.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/domizei385/pogoAccountServer/internal/clock"
)

// Store is the account broker's sole persistence boundary.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Config configures the underlying *sql.DB connection pool.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifeSecs int
}

// Open establishes the MySQL connection pool and returns a ready Store.
func Open(cfg Config, c clock.Clock) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: opening mysql connection: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifeSecs > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeSecs) * time.Second)
	}

	log.Printf("[store] database pool initialized: idle=%d open=%d lifetime=%ds",
		cfg.MaxIdleConns, cfg.MaxOpenConns, cfg.ConnMaxLifeSecs)

	return &Store{db: db, clock: c}, nil
}

// New wraps an already-open *sql.DB (used by tests with sqlmock or a real
// throwaway database).
func New(db *sql.DB, c clock.Clock) *Store {
	return &Store{db: db, clock: c}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database reachability, used by the /test diagnostic endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. No Store operation here needs a transaction to
// outlive one method call.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("[store] rollback failed: %v (original error: %v)", rbErr, err)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
