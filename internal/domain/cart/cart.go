// Package cart holds the shopping cart entity, its persistence contract, and
// the business operations on a user's open cart.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a user has no open cart.
var ErrNotFound = errors.New("cart not found")

// Status is the lifecycle state of a cart.
type Status string

const (
	// StatusOpen marks the single active cart of a user. At most one open
	// cart per user exists; storage enforces this with a partial unique index.
	StatusOpen Status = "OPEN"
	// StatusOrdered is reserved for carts converted to orders. The current
	// checkout flow deletes the cart instead, so the value only appears in
	// historical data imported from elsewhere.
	StatusOrdered Status = "ORDERED"
)

// Item is a single product line in a cart.
type Item struct {
	ProductID string `json:"productId"`
	Count     int32  `json:"count"`
}

// Cart is a user's mutable, in-progress collection of line items.
type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []Item
}

// Repository defines persistence operations for carts and their items.
type Repository interface {
	// FindOpenByUserID returns the user's open cart with its items, or
	// ErrNotFound when none exists.
	FindOpenByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error)
	// Create inserts an open cart for the user. When the user already has an
	// open cart (including one created by a concurrent request), Create is a
	// no-op; callers re-read afterwards. The open-cart uniqueness is enforced
	// by storage, not by caller timing.
	Create(ctx context.Context, userID uuid.UUID) error
	// ReplaceItems swaps the cart's item set and bumps updated_at.
	ReplaceItems(ctx context.Context, cartID uuid.UUID, items []Item) error
	// DeleteByUserID removes the user's open cart and, by cascade, its items.
	// Deleting a non-existent cart is not an error.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
