// Package order holds the immutable order entity produced by checkout, its
// status state machine, and the persistence contract.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Sentinel errors returned by Repository implementations and the Service.
var (
	ErrNotFound          = errors.New("order not found")
	ErrUserNotFound      = errors.New("order references unknown user")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Status is a step in an order's lifecycle.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// CanTransition reports whether an order may move from one status to another.
// The lifecycle is OPEN -> PAID -> SHIPPED -> DELIVERED, with CANCELLED
// reachable from any non-terminal state. DELIVERED and CANCELLED are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusPaid || to == StatusCancelled
	case StatusPaid:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered || to == StatusCancelled
	case StatusDelivered, StatusCancelled:
		return false
	default:
		return false
	}
}

// Item is a value copy of a cart line at checkout time. Orders never
// reference live cart item rows; the cart is gone once checkout commits.
type Item struct {
	ProductID string `json:"productId"`
	Count     int32  `json:"count"`
}

// Address is the delivery address captured at checkout.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	City      string `json:"city"`
	Address   string `json:"address"`
	Comment   string `json:"comment"`
}

// StatusChange is one entry in an order's append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment"`
}

// Order is an immutable record of a completed checkout. Only StatusHistory
// grows after creation, through Service.AppendStatus.
type Order struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	CartID        uuid.UUID
	Items         []Item
	Address       Address
	StatusHistory []StatusChange
	CreatedAt     time.Time
}

// CurrentStatus returns the most recent status, or StatusOpen for orders with
// an empty history (which the Service never produces).
func (o *Order) CurrentStatus() Status {
	if len(o.StatusHistory) == 0 {
		return StatusOpen
	}
	return o.StatusHistory[len(o.StatusHistory)-1].Status
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order. It returns ErrUserNotFound when the user
	// reference is invalid. No partial order may survive a failure.
	Create(ctx context.Context, o *Order) error
	// FindByID returns an order or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// ListByUserID returns all orders of a user, newest first.
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	// List returns all orders, newest first.
	List(ctx context.Context) ([]Order, error)
	// AppendStatus appends a status change to an order's history, but only
	// when the history still ends in ifCurrent. It never rewrites existing
	// entries. A history that moved on since the caller read it (a concurrent
	// append won) yields ErrInvalidTransition; an unknown order yields
	// ErrNotFound. The compare-and-append must be atomic in storage so two
	// racing transitions out of the same status cannot both land.
	AppendStatus(ctx context.Context, id uuid.UUID, change StatusChange, ifCurrent Status) error
}
