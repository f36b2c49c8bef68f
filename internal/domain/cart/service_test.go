package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementation ---

type mockCartRepo struct {
	byUser     map[uuid.UUID]*Cart
	findErr    error
	createErr  error
	replaceErr error
	creates    int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{byUser: make(map[uuid.UUID]*Cart)}
}

func (m *mockCartRepo) FindOpenByUserID(_ context.Context, userID uuid.UUID) (*Cart, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Create(_ context.Context, userID uuid.UUID) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	if _, ok := m.byUser[userID]; ok {
		// Matches the ON CONFLICT DO NOTHING storage behavior.
		return nil
	}
	now := time.Now()
	m.byUser[userID] = &Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (m *mockCartRepo) ReplaceItems(_ context.Context, cartID uuid.UUID, items []Item) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for _, c := range m.byUser {
		if c.ID == cartID {
			c.Items = append([]Item(nil), items...)
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockCartRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	delete(m.byUser, userID)
	return nil
}

// --- Tests ---

func TestFindOrCreateByUserID_CreatesWhenAbsent(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewService(repo)
	userID := uuid.New()

	c, err := svc.FindOrCreateByUserID(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, userID, c.UserID)
	assert.Equal(t, StatusOpen, c.Status)
	assert.Empty(t, c.Items)
	assert.Equal(t, 1, repo.creates)
}

func TestFindOrCreateByUserID_ReturnsExisting(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewService(repo)
	userID := uuid.New()

	first, err := svc.FindOrCreateByUserID(context.Background(), userID)
	require.NoError(t, err)

	second, err := svc.FindOrCreateByUserID(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.creates)
}

func TestFindOrCreateByUserID_PropagatesStorageError(t *testing.T) {
	repo := newMockCartRepo()
	repo.findErr = errors.New("db down")
	svc := NewService(repo)

	_, err := svc.FindOrCreateByUserID(context.Background(), uuid.New())
	require.ErrorContains(t, err, "db down")
}

func TestFindByUserID_DoesNotCreate(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewService(repo)

	_, err := svc.FindByUserID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, repo.creates)
}

func TestUpdateByUserID_ReplacesItems(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewService(repo)
	userID := uuid.New()

	c, err := svc.UpdateByUserID(context.Background(), userID, []Item{
		{ProductID: "p1", Count: 2},
		{ProductID: "p2", Count: 1},
	})
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)

	c, err = svc.UpdateByUserID(context.Background(), userID, []Item{
		{ProductID: "p3", Count: 5},
	})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p3", c.Items[0].ProductID)
	assert.EqualValues(t, 5, c.Items[0].Count)
}

func TestUpdateByUserID_RejectsNonPositiveCount(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewService(repo)

	_, err := svc.UpdateByUserID(context.Background(), uuid.New(), []Item{
		{ProductID: "p1", Count: 0},
	})

	var invalid *InvalidItemError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "p1", invalid.ProductID)
	assert.Zero(t, repo.creates)
}

func TestRemoveByUserID_Idempotent(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewService(repo)
	userID := uuid.New()

	_, err := svc.FindOrCreateByUserID(context.Background(), userID)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveByUserID(context.Background(), userID))
	// Removing again is not an error.
	require.NoError(t, svc.RemoveByUserID(context.Background(), userID))

	_, err = svc.FindByUserID(context.Background(), userID)
	require.ErrorIs(t, err, ErrNotFound)
}
