// Package txmanager carries a gorm transaction through context.Context so
// repositories called inside Manager.Do join the same unit of work.
package txmanager

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

type Manager struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Do runs fn inside a transaction. Nested calls reuse the outer transaction.
// Any error returned by fn, or a cancelled ctx, rolls everything back.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Nested runs fn in a savepoint of the active transaction, so a failure
// inside fn can be recovered from without aborting the outer transaction.
// Without an active transaction it behaves like Do.
func (m *Manager) Nested(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	if !ok {
		return m.Do(ctx, fn)
	}
	return tx.Transaction(func(inner *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, inner))
	})
}

// DB returns the transaction bound to ctx, or fallback scoped to ctx.
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}
