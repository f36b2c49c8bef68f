package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vortelio/cart-service/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

const (
	findOpenCartSQL = `SELECT id, user_id, status, created_at, updated_at
	FROM carts WHERE user_id = $1 AND status = 'OPEN'`

	// FOR UPDATE variant used inside the checkout transaction: the row lock
	// serializes competing checkouts and cart mutations on the same cart.
	findOpenCartForUpdateSQL = findOpenCartSQL + ` FOR UPDATE`

	listCartItemsSQL = `SELECT product_id, count FROM cart_items
	WHERE cart_id = $1 ORDER BY product_id`

	// The conflict target is the partial unique index on open carts, so a
	// concurrent insert for the same user degrades to a no-op instead of a
	// second open cart.
	createCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
	ON CONFLICT (user_id) WHERE status = 'OPEN' DO NOTHING`

	deleteCartItemsSQL  = `DELETE FROM cart_items WHERE cart_id = $1`
	insertCartItemSQL   = `INSERT INTO cart_items (cart_id, product_id, count) VALUES ($1, $2, $3)`
	touchCartSQL        = `UPDATE carts SET updated_at = now() WHERE id = $1`
	deleteCartByUserSQL = `DELETE FROM carts WHERE user_id = $1 AND status = 'OPEN'`
	deleteCartByIDSQL   = `DELETE FROM carts WHERE id = $1`
)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindOpenByUserID returns the user's open cart with its items.
func (r *CartRepository) FindOpenByUserID(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return findOpenCart(ctx, r.pool, userID, false)
}

// Create inserts an open cart for the user; a concurrently created open cart
// makes this a no-op.
func (r *CartRepository) Create(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, createCartSQL, userID); err != nil {
		return errors.Wrapf(err, "create cart for user %s", userID)
	}
	return nil
}

// ReplaceItems swaps the cart's item set inside a short transaction and bumps
// updated_at. The delete-then-insert pair must be atomic so readers never see
// a half-replaced cart.
func (r *CartRepository) ReplaceItems(ctx context.Context, cartID uuid.UUID, items []cart.Item) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteCartItemsSQL, cartID); err != nil {
			return errors.Wrap(err, "clear items")
		}

		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(insertCartItemSQL, cartID, it.ProductID, it.Count)
		}
		batch.Queue(touchCartSQL, cartID)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert items")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "replace items of cart %s", cartID)
	}
	return nil
}

// DeleteByUserID removes the user's open cart; items cascade. Deleting a
// non-existent cart succeeds.
func (r *CartRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, deleteCartByUserSQL, userID); err != nil {
		return errors.Wrapf(err, "delete cart of user %s", userID)
	}
	return nil
}

// findOpenCart loads a cart and its items through any Querier, optionally
// locking the cart row. Shared by the repository and the checkout transactor.
func findOpenCart(ctx context.Context, q Querier, userID uuid.UUID, forUpdate bool) (*cart.Cart, error) {
	query := findOpenCartSQL
	if forUpdate {
		query = findOpenCartForUpdateSQL
	}

	var c cart.Cart
	err := q.QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrap(err, "query cart")
	}

	rows, err := q.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "query cart items")
	}
	defer rows.Close()

	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ProductID, &it.Count); err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart items")
	}

	return &c, nil
}
