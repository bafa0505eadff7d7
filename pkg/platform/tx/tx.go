// Package tx carries a database transaction through context. Stores check
// for an ambient transaction before falling back to their own handle, so a
// caller that opens one can make writes across stores atomic, like a run
// state change and its audit outbox row.
package tx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTx returns a context carrying tx. A nil tx leaves ctx unchanged.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// From returns the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
