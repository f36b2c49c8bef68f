// Package checkout converts a user's open cart into an order atomically.
//
// Checkout is the only multi-entity write in the system: it reads the cart,
// creates an order from a value snapshot of the items, and deletes the cart,
// all inside one storage transaction. A crash or conflict between any of
// those steps rolls the whole operation back, so the system never observes
// "order exists, cart still exists" or "cart gone, no order".
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/vortelio/cart-service/internal/domain/cart"
	"github.com/vortelio/cart-service/internal/domain/order"
)

// Errors surfaced to the API layer.
var (
	// ErrEmptyCart means checkout was attempted on a missing or empty cart.
	// Not retried; mapped to a 400-class response.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrConflict means the storage engine detected a concurrent-modification
	// conflict. The coordinator performs no retry: the transaction is not
	// idempotent, and an automatic retry could produce a duplicate order. The
	// API layer may retry the whole checkout once at its discretion.
	ErrConflict = errors.New("checkout conflict")
)

// Store is the transaction-scoped view of storage the coordinator works
// against. Every method runs inside the transaction opened by Transactor.InTx,
// so the engine's isolation governs concurrent-modification behavior.
type Store interface {
	// CartForUpdate reads the user's open cart and its items under a row
	// lock, or returns cart.ErrNotFound. The lock serializes concurrent
	// checkouts and cart mutations on the same cart.
	CartForUpdate(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	// CreateOrder persists the order within the transaction.
	CreateOrder(ctx context.Context, o *order.Order) error
	// DeleteCart removes the cart row; items go with it by cascade.
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
}

// Transactor runs a function inside a single all-or-nothing storage
// transaction. An error from fn rolls everything back and is returned as-is.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Coordinator orchestrates the atomic cart-to-order transition.
type Coordinator struct {
	tx      Transactor
	timeout time.Duration
	now     func() time.Time
}

// NewCoordinator creates a Coordinator. timeout bounds the duration of each
// checkout transaction; non-positive values fall back to 5 seconds.
func NewCoordinator(tx Transactor, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Coordinator{
		tx:      tx,
		timeout: timeout,
		now:     time.Now,
	}
}

// Checkout converts the user's open cart into an order.
//
// The cart is read inside the transaction, not via a pre-transaction
// snapshot, so a concurrent update or a competing checkout is resolved by the
// engine's locking: of two concurrent checkouts of the same cart exactly one
// succeeds, the other observes the cart as gone and fails with ErrEmptyCart.
// On any failure the transaction rolls back and the cart is left untouched.
func (c *Coordinator) Checkout(ctx context.Context, userID uuid.UUID, addr order.Address) (*order.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var placed *order.Order
	err := c.tx.InTx(ctx, func(ctx context.Context, s Store) error {
		crt, err := s.CartForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, cart.ErrNotFound) {
				return ErrEmptyCart
			}
			return errors.Wrap(err, "read cart")
		}
		if len(crt.Items) == 0 {
			return ErrEmptyCart
		}

		// Value copy of the cart lines: the order must not reference cart
		// item rows, which are deleted two steps below.
		items := make([]order.Item, len(crt.Items))
		for i, it := range crt.Items {
			items[i] = order.Item{ProductID: it.ProductID, Count: it.Count}
		}

		now := c.now()
		placed = &order.Order{
			ID:      uuid.New(),
			UserID:  userID,
			CartID:  crt.ID,
			Items:   items,
			Address: addr,
			StatusHistory: []order.StatusChange{
				{Status: order.StatusOpen, Timestamp: now, Comment: ""},
			},
			CreatedAt: now,
		}
		if err := s.CreateOrder(ctx, placed); err != nil {
			return errors.Wrap(err, "create order")
		}

		if err := s.DeleteCart(ctx, crt.ID); err != nil {
			return errors.Wrap(err, "delete cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}
