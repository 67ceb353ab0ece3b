package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type TxContextKey string

const txKey = TxContextKey("tx-context-key")

// Querier is the statement surface shared by the pool and an open
// transaction. Repositories run every statement through one, resolved with
// QuerierFromContext, so a statement issued under an open transaction joins
// it automatically.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Tx is an open transaction. The acquisition that opened it owns the
// lifecycle; nested acquisitions share its statements but their Commit and
// Rollback do nothing.
type Tx interface {
	Querier
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Transaction wraps sqlx.Tx with lifecycle tracking.
type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
	}
}

// GetTx returns the open transaction carried by ctx, or begins a new one.
// A newly begun transaction rides the returned context, so repository
// statements and nested GetTx calls under that context join it. Commit and
// Rollback are live only on the Tx returned to the caller that began it.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if current, ok := ctx.Value(txKey).(*Transaction); ok && current.IsOpen() {
		return ctx, &nestedTx{current}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction: %w", err)
	}

	newTx := NewTx(tx, logger)
	ctx = context.WithValue(ctx, txKey, newTx)
	return ctx, newTx, nil
}

// QuerierFromContext returns the open transaction carried by ctx, or fallback
// when none is open.
func QuerierFromContext(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(txKey).(*Transaction); ok && tx.IsOpen() {
		return tx
	}
	return fallback
}

func (t *Transaction) IsOpen() bool {
	return !t.isClosed
}

// Rollback aborts the transaction. After a successful Commit it does
// nothing, which is what the usual `defer tx.Rollback(ctx)` relies on.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction: %w", err)
	}

	t.isClosed = true
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}

	t.isClosed = true
	return nil
}

// nestedTx is the view handed to callers that joined an already-open
// transaction. Statements run on the shared transaction; the opener owns the
// lifecycle, so Commit and Rollback do nothing here.
type nestedTx struct {
	*Transaction
}

func (t *nestedTx) Commit(ctx context.Context) error { return nil }

func (t *nestedTx) Rollback(ctx context.Context) error { return nil }
