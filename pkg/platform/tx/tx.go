// Package tx carries a SQL transaction through context so multi-statement
// store operations (profile rewrite plus contact index) can share one
// transaction without changing store signatures.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// WithTx returns a context carrying the transaction. Stores that find one
// route their statements through it instead of the pooled connection.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// From extracts the carried transaction, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return t, ok
}
