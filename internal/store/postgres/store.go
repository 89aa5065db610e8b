// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tablet-tracker/internal/metrics"
	"tablet-tracker/internal/repositories"
	"tablet-tracker/internal/store"
)

var _ store.Store = (*Store)(nil)

// SQLSTATEs worth retrying: serialization_failure, deadlock_detected.
const (
	sqlStateSerialization = "40001"
	sqlStateDeadlock      = "40P01"
)

// TxStarter is the part of *pgxpool.Pool the store needs.
type TxStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Store struct {
	pool        TxStarter
	maxAttempts int
	backoff     time.Duration
}

func NewStore(pool TxStarter, maxAttempts int, backoff time.Duration) *Store {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Store{pool: pool, maxAttempts: maxAttempts, backoff: backoff}
}

// tx exposes every repository bound to one pgx transaction.
type tx struct {
	*repositories.CatalogRepository
	*repositories.InventoryRepository
	*repositories.SubmissionRepository
	*repositories.PurchaseOrderRepository
	*repositories.SystemSettingRepository
}

func bind(q repositories.Querier) store.Tx {
	return &tx{
		CatalogRepository:       repositories.NewCatalogRepository(q),
		InventoryRepository:     repositories.NewInventoryRepository(q),
		SubmissionRepository:    repositories.NewSubmissionRepository(q),
		PurchaseOrderRepository: repositories.NewPurchaseOrderRepository(q),
		SystemSettingRepository: repositories.NewSystemSettingRepository(q),
	}
}

// RunInTx runs fn in a read-committed transaction, retrying a bounded number
// of times when Postgres reports a serialization failure or deadlock.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runOnce(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
		if err == nil || !retryable(err) || attempt == s.maxAttempts {
			return err
		}
		metrics.TxRetries.Inc()
		log.Printf("[Store] transaction conflict (attempt %d/%d): %v", attempt, s.maxAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return err
}

func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.runOnce(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) runOnce(ctx context.Context, opts pgx.TxOptions, fn func(tx store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(bind(pgTx)); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerialization || pgErr.Code == sqlStateDeadlock
}
