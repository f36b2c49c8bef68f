package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vortelio/cart-service/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, cart_id, items, address, status_history, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectOrderSQL = `SELECT id, user_id, cart_id, items, address, status_history, created_at
	FROM orders`

	findOrderByIDSQL  = selectOrderSQL + ` WHERE id = $1`
	listOrdersSQL     = selectOrderSQL + ` ORDER BY created_at DESC`
	listUserOrdersSQL = selectOrderSQL + ` WHERE user_id = $1 ORDER BY created_at DESC`

	// jsonb || appends the change object to the history array, so existing
	// entries are never rewritten. The predicate on the last entry makes the
	// append a compare-and-swap: a concurrent append moves the history on and
	// this statement matches zero rows.
	appendStatusSQL = `UPDATE orders SET status_history = status_history || $2::jsonb
	WHERE id = $1 AND status_history -> -1 ->> 'status' = $3`

	currentStatusSQL = `SELECT status_history -> -1 ->> 'status' FROM orders WHERE id = $1`
)

// OrderRepository implements order.Repository backed by PostgreSQL. Items,
// address, and status history live in JSONB columns; the item snapshot is
// plain data with no reference back to cart rows.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return createOrder(ctx, r.pool, o)
}

// FindByID returns an order or order.ErrNotFound.
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, findOrderByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.queryOrders(ctx, listOrdersSQL)
}

// ListByUserID returns all orders of one user, newest first.
func (r *OrderRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return r.queryOrders(ctx, listUserOrdersSQL, userID)
}

// AppendStatus appends one change to the order's status history, conditional
// on the history still ending in ifCurrent.
func (r *OrderRepository) AppendStatus(ctx context.Context, id uuid.UUID, change order.StatusChange, ifCurrent order.Status) error {
	changeJSON, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "marshal status change")
	}

	tag, err := r.pool.Exec(ctx, appendStatusSQL, id, changeJSON, string(ifCurrent))
	if err != nil {
		return errors.Wrapf(err, "append status to order %s", id)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means the order is gone or a concurrent append moved the
		// history past ifCurrent; tell the two apart for the caller.
		var current string
		err := r.pool.QueryRow(ctx, currentStatusSQL, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		if err != nil {
			return errors.Wrapf(err, "read status of order %s", id)
		}
		return errors.Wrapf(order.ErrInvalidTransition, "%s -> %s, order moved to %s", ifCurrent, change.Status, current)
	}
	return nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}
	return orders, nil
}

// createOrder inserts an order through any Querier. Shared by the repository
// and the checkout transactor. A foreign key violation on the user reference
// surfaces as order.ErrUserNotFound.
func createOrder(ctx context.Context, q Querier, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return errors.Wrap(err, "marshal address")
	}
	historyJSON, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return errors.Wrap(err, "marshal status history")
	}

	_, err = q.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.CartID, itemsJSON, addressJSON, historyJSON, o.CreatedAt,
	)
	if err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return order.ErrUserNotFound
		}
		return errors.Wrapf(err, "create order %s", o.ID)
	}
	return nil
}

// scanOrder reads one order row, decoding the JSONB columns.
func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		addressJSON []byte
		historyJSON []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &itemsJSON, &addressJSON, &historyJSON, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, errors.Wrap(err, "unmarshal items")
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return nil, errors.Wrap(err, "unmarshal address")
	}
	if err := json.Unmarshal(historyJSON, &o.StatusHistory); err != nil {
		return nil, errors.Wrap(err, "unmarshal status history")
	}
	return &o, nil
}
