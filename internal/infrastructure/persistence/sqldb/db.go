// Package sqldb carries the ambient transaction through context so that
// repositories join it without knowing who started it.
package sqldb

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/pkg/database"
)

type contextKey string

const txKey contextKey = "tx"

// DB implements port.TransactionManager over a database connection
type DB struct {
	conn   *database.DB
	logger *zap.Logger
}

// NewDB creates a new transaction manager
func NewDB(conn *database.DB, logger *zap.Logger) *DB {
	return &DB{
		conn:   conn,
		logger: logger,
	}
}

// Driver returns the underlying driver name
func (db *DB) Driver() string {
	return db.conn.Driver()
}

// WithTransaction runs fn inside a transaction. A transaction already in ctx
// is reused. Driver errors are returned as-is.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return err
	}

	return nil
}

// InTransaction reports whether ctx carries a transaction
func InTransaction(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

func extractTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// Executor returns the transaction in ctx, or the connection itself
func (db *DB) Executor(ctx context.Context) sqlx.ExtContext {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db.conn.DB
}

var _ port.TransactionManager = (*DB)(nil)
