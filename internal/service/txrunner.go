package service

import (
	"context"

	"agorahub.app/backbone/core/db"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/store"
)

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds an execution.TxRunner backed by the core DB.
func NewTxRunner(database *db.DB) execution.TxRunner {
	return &dbTxRunner{db: database}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(s execution.StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q db.Querier) error {
		return fn(store.NewStores(q))
	})
}
