package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls.
// The concrete type is infra-defined (pgx.Tx for Postgres). Repositories
// MUST accept a nil handle and fall back to the non-transactional path.
type Tx interface{}

// NoTX is the nil handle used when a call runs outside any transaction.
var NoTX Tx

// TransactionManager runs a function inside a database transaction, passing
// the handle via `tx`. Keeping the handle opaque keeps use-case interfaces
// clean while still letting repositories take row locks
// (SELECT ... FOR UPDATE) when they detect a real transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
