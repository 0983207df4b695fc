package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/newsletter/internal/service/subscription"
)

const defaultTxTimeout = 5 * time.Second

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store runs subscription transactions against a Postgres pool.
type Store struct {
	db        *sql.DB
	txTimeout time.Duration
	newToken  func() string
}

// NewStore creates a Store. A zero txTimeout means the default of five
// seconds.
func NewStore(db *sql.DB, txTimeout time.Duration) *Store {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &Store{db: db, txTimeout: txTimeout, newToken: subscription.GenerateToken}
}

// RunInTx implements subscription.TxRunner. The transaction is bounded by
// the store timeout unless ctx already carries a deadline.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx subscription.Tx) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return subscription.NewStorageError(subscription.OpAcquire, fmt.Errorf("begin transaction: %w", err))
	}
	// No-op once committed.
	defer sqlTx.Rollback()

	if err := fn(ctx, &pgTx{q: sqlTx, newToken: s.newToken}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return subscription.NewStorageError(subscription.OpCommit, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

type pgTx struct {
	q        querier
	newToken func() string
}

func (t *pgTx) Subscribers() subscription.SubscriberRepository {
	return &SubscriberRepo{q: t.q}
}

func (t *pgTx) Tokens() subscription.TokenStore {
	return &TokenRepo{q: t.q, newToken: t.newToken}
}

// storageError tags err with op, or with OpAcquire when Postgres reports the
// connection itself is gone.
func storageError(op subscription.StorageOp, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08", pqErr.Code == "57P01":
			op = subscription.OpAcquire
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		op = subscription.OpAcquire
	}
	return subscription.NewStorageError(op, err)
}
