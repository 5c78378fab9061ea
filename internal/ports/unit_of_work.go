package ports

import "context"

// Tx is an opaque transaction handle for repositories.
// Infrastructure controls the concrete type (for example, *gorm.DB).
type Tx any

// UnitOfWork defines a transaction boundary.
//
// It is callback-style: returning an error from fn rolls back every write
// made through repositories that received the callback's context; returning
// nil commits them together.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context, or nil.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
