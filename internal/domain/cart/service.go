package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// InvalidItemError indicates a line item with a non-positive count.
type InvalidItemError struct {
	ProductID string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("count must be greater than 0 for product %s", e.ProductID)
}

// Service encapsulates cart business logic over a Repository.
type Service struct {
	carts Repository
}

// NewService creates a cart Service.
func NewService(carts Repository) *Service {
	return &Service{carts: carts}
}

// FindOrCreateByUserID returns the user's open cart, creating an empty one
// when none exists. Safe under concurrent first access: Create relies on the
// storage-level uniqueness of open carts, so two racing calls converge on the
// same cart row.
func (s *Service) FindOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.carts.FindOpenByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "find cart")
	}

	if err := s.carts.Create(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}

	// Re-read: a concurrent request may have won the insert, and Create does
	// not report which row ended up in place.
	c, err = s.carts.FindOpenByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "reload cart")
	}
	return c, nil
}

// FindByUserID returns the user's open cart or ErrNotFound. It never creates.
func (s *Service) FindByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	return s.carts.FindOpenByUserID(ctx, userID)
}

// UpdateByUserID replaces the item set of the user's open cart, creating the
// cart first when none exists. It returns the cart with the new items.
func (s *Service) UpdateByUserID(ctx context.Context, userID uuid.UUID, items []Item) (*Cart, error) {
	for _, it := range items {
		if it.Count <= 0 {
			return nil, &InvalidItemError{ProductID: it.ProductID}
		}
	}

	c, err := s.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.carts.ReplaceItems(ctx, c.ID, items); err != nil {
		return nil, errors.Wrap(err, "replace items")
	}

	c, err = s.carts.FindOpenByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "reload cart")
	}
	return c, nil
}

// RemoveByUserID deletes the user's open cart and its items. Removing a
// non-existent cart succeeds.
func (s *Service) RemoveByUserID(ctx context.Context, userID uuid.UUID) error {
	return s.carts.DeleteByUserID(ctx, userID)
}
