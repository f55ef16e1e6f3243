package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Querier is what repositories run statements against: the pool or the
// transaction carried by the context.
type Querier interface {
	sqlx.ExtContext
}

// InTx runs fn inside a single transaction. The transaction travels in the
// context handed to fn, so every repository call made with that context joins
// it through Querier. A nested InTx joins the outer transaction instead of
// opening a new one.
//
// Usage in services:
//
//	err := s.db.InTx(ctx, func(ctx context.Context) error {
//	    item, err := s.items.LockByName(ctx, name, dept)
//	    ...
//	    return s.batches.UpdateQuantity(ctx, batch.ID, left)
//	})
func (db *DB) InTx(ctx context.Context, fn func(context.Context) error) error {
	if db.getTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && db.logger != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Querier returns the transaction stored in ctx, or the pool when there is none.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx := db.getTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

// getTx extracts transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
