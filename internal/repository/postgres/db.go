package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// maxTxAttempts bounds retries of transactions aborted by serialization failures.
const maxTxAttempts = 3

// Option configures a repository.
type Option func(*txRunner)

// WithTxOptions overrides the transaction options. The default is serializable.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(r *txRunner) { r.opts = opts }
}

// txRunner runs a unit of work in a transaction of its own, or directly on the
// caller's transaction when the repository was built with one.
type txRunner struct {
	db   *sql.DB
	q    Querier
	opts *sql.TxOptions
}

func newTxRunner(db *sql.DB, opts []Option) txRunner {
	r := txRunner{db: db, q: db, opts: &sql.TxOptions{Isolation: sql.LevelSerializable}}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func newTxRunnerWithTx(tx *sql.Tx) txRunner {
	return txRunner{q: tx}
}

func (r txRunner) inTx(ctx context.Context, fn func(q Querier) error) error {
	if r.db == nil {
		return fn(r.q)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func (r txRunner) runOnce(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := r.db.BeginTx(ctx, r.opts)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isSerializationFailure reports whether Postgres aborted the transaction
// because of a concurrent writer, in which case it is safe to retry.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
