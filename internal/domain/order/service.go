package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// CreatePayload is the input for creating an order from a cart snapshot.
type CreatePayload struct {
	UserID  uuid.UUID
	CartID  uuid.UUID
	Items   []Item
	Address Address
}

// Service encapsulates order business logic over a Repository.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		now:    time.Now,
	}
}

// Create builds an order from the payload, initializes its status history to
// a single OPEN entry, and persists it. The payload items are copied so the
// order never aliases the caller's slice.
func (s *Service) Create(ctx context.Context, p CreatePayload) (*Order, error) {
	now := s.now()

	items := make([]Item, len(p.Items))
	copy(items, p.Items)

	o := &Order{
		ID:      uuid.New(),
		UserID:  p.UserID,
		CartID:  p.CartID,
		Items:   items,
		Address: p.Address,
		StatusHistory: []StatusChange{
			{Status: StatusOpen, Timestamp: now, Comment: ""},
		},
		CreatedAt: now,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// FindByID returns a single order.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.orders.FindByID(ctx, id)
}

// List returns all orders.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// ListByUserID returns all orders of one user.
func (s *Service) ListByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return s.orders.ListByUserID(ctx, userID)
}

// AppendStatus validates the transition against the order state machine and
// appends a new history entry. It returns ErrInvalidTransition when the move
// is not allowed from the order's current status. History entries are never
// overwritten.
//
// The append is conditional on the status the transition was validated
// against, so of two concurrent transitions out of the same status exactly
// one lands; the loser gets ErrInvalidTransition and must re-read.
func (s *Service) AppendStatus(ctx context.Context, id uuid.UUID, to Status, comment string) (*Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := o.CurrentStatus()
	if !CanTransition(from, to) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}

	change := StatusChange{Status: to, Timestamp: s.now(), Comment: comment}
	if err := s.orders.AppendStatus(ctx, id, change, from); err != nil {
		return nil, errors.Wrap(err, "append status")
	}

	return s.orders.FindByID(ctx, id)
}
