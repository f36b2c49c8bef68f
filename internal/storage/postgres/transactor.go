package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vortelio/cart-service/internal/checkout"
	"github.com/vortelio/cart-service/internal/domain/cart"
	"github.com/vortelio/cart-service/internal/domain/order"
)

var _ checkout.Transactor = (*Transactor)(nil)

// Transactor runs checkout logic inside a single read-committed pgx
// transaction. Row locks taken by CartForUpdate serialize conflicting
// checkouts; serialization failures and deadlocks surface as
// checkout.ErrConflict so the API layer can map them to a 409.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor over the given pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTx opens a transaction, passes a transaction-scoped Store to fn, and
// commits only when fn returns nil. Any error — including the context
// deadline the coordinator imposes — rolls the whole transaction back.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, s checkout.Store) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txStore{q: tx}); err != nil {
		return mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapConflict(errors.Wrap(err, "commit tx"))
	}
	return nil
}

// mapConflict tags engine-level concurrency failures with ErrConflict while
// leaving the original error in the chain.
func mapConflict(err error) error {
	switch pgErrCode(err) {
	case pgSerializationFail, pgDeadlockDetected:
		return errors.Wrapf(checkout.ErrConflict, "%v", err)
	}
	return err
}

var _ checkout.Store = (*txStore)(nil)

// txStore is the transaction-scoped storage view handed to checkout logic.
type txStore struct {
	q Querier
}

func (s *txStore) CartForUpdate(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return findOpenCart(ctx, s.q, userID, true)
}

func (s *txStore) CreateOrder(ctx context.Context, o *order.Order) error {
	return createOrder(ctx, s.q, o)
}

func (s *txStore) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.q.Exec(ctx, deleteCartByIDSQL, cartID); err != nil {
		return errors.Wrapf(err, "delete cart %s", cartID)
	}
	return nil
}
