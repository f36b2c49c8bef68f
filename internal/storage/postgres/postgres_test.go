//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/vortelio/cart-service/internal/checkout"
	"github.com/vortelio/cart-service/internal/domain/cart"
	"github.com/vortelio/cart-service/internal/domain/order"
	"github.com/vortelio/cart-service/internal/domain/user"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cart"),
		tcpostgres.WithUsername("cart"),
		tcpostgres.WithPassword("cart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

// createTestUser inserts a user with a unique name and returns its ID.
func createTestUser(t *testing.T) uuid.UUID {
	t.Helper()

	u := &user.User{
		ID:           uuid.New(),
		Name:         "user-" + uuid.NewString(),
		PasswordHash: "x",
	}
	require.NoError(t, NewUserRepository(pool).Create(context.Background(), u))
	return u.ID
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := &user.User{
		ID:           uuid.New(),
		Name:         "alice-" + uuid.NewString(),
		Email:        "alice@example.com",
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(ctx, u))

	// A taken name maps the unique violation to the domain error.
	dup := &user.User{ID: uuid.New(), Name: u.Name, PasswordHash: "other"}
	require.ErrorIs(t, repo.Create(ctx, dup), user.ErrAlreadyExists)

	byName, err := repo.FindByName(ctx, u.Name)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, "alice@example.com", byName.Email)

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Name, byID.Name)

	_, err = repo.FindByName(ctx, "nobody-"+uuid.NewString())
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestUserRepository_EmptyEmailIsNull(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := &user.User{ID: uuid.New(), Name: "bob-" + uuid.NewString(), PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Email)
}

func TestCartRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(pool)
	userID := createTestUser(t)

	_, err := repo.FindOpenByUserID(ctx, userID)
	require.ErrorIs(t, err, cart.ErrNotFound)

	require.NoError(t, repo.Create(ctx, userID))
	c, err := repo.FindOpenByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, cart.StatusOpen, c.Status)
	assert.Empty(t, c.Items)

	require.NoError(t, repo.ReplaceItems(ctx, c.ID, []cart.Item{
		{ProductID: "p1", Count: 2},
		{ProductID: "p2", Count: 1},
	}))
	c, err = repo.FindOpenByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)

	require.NoError(t, repo.ReplaceItems(ctx, c.ID, []cart.Item{{ProductID: "p3", Count: 5}}))
	c, err = repo.FindOpenByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p3", c.Items[0].ProductID)

	require.NoError(t, repo.DeleteByUserID(ctx, userID))
	_, err = repo.FindOpenByUserID(ctx, userID)
	require.ErrorIs(t, err, cart.ErrNotFound)

	// Deleting an absent cart is still a success.
	require.NoError(t, repo.DeleteByUserID(ctx, userID))
}

func TestCartRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository(pool)
	userID := createTestUser(t)

	// Racing creates must degrade to no-ops on the partial unique index, never
	// to a second open cart.
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			return repo.Create(gctx, userID)
		})
	}
	require.NoError(t, g.Wait())

	var count int
	err := pool.QueryRow(ctx,
		`SELECT count(*) FROM carts WHERE user_id = $1 AND status = 'OPEN'`, userID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(pool)
	userID := createTestUser(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &order.Order{
		ID:     uuid.New(),
		UserID: userID,
		CartID: uuid.New(),
		Items:  []order.Item{{ProductID: "p1", Count: 2}},
		Address: order.Address{
			FirstName: "Alice",
			City:      "X",
		},
		StatusHistory: []order.StatusChange{{Status: order.StatusOpen, Timestamp: now}},
		CreatedAt:     now,
	}
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, "Alice", got.Address.FirstName)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, order.StatusOpen, got.CurrentStatus())

	require.NoError(t, repo.AppendStatus(ctx, o.ID, order.StatusChange{
		Status:    order.StatusPaid,
		Timestamp: now.Add(time.Minute),
		Comment:   "payment received",
	}, order.StatusOpen))
	got, err = repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, order.StatusPaid, got.CurrentStatus())

	// An append validated against a history that has since moved on must not
	// land a second entry.
	err = repo.AppendStatus(ctx, o.ID, order.StatusChange{
		Status:    order.StatusCancelled,
		Timestamp: now.Add(2 * time.Minute),
	}, order.StatusOpen)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	got, err = repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.StatusHistory, 2)

	listed, err := repo.ListByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestOrderRepository_UnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(pool)

	o := &order.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(), // no such user
		CartID:        uuid.New(),
		Items:         []order.Item{{ProductID: "p1", Count: 1}},
		StatusHistory: []order.StatusChange{{Status: order.StatusOpen, Timestamp: time.Now()}},
		CreatedAt:     time.Now(),
	}
	require.ErrorIs(t, repo.Create(ctx, o), order.ErrUserNotFound)
}

func TestOrderRepository_AppendStatusUnknownOrder(t *testing.T) {
	err := NewOrderRepository(pool).AppendStatus(context.Background(), uuid.New(), order.StatusChange{
		Status:    order.StatusPaid,
		Timestamp: time.Now(),
	}, order.StatusOpen)
	require.ErrorIs(t, err, order.ErrNotFound)
}

// seedCart creates an open cart with items for the user and returns it.
func seedCart(t *testing.T, userID uuid.UUID, items ...cart.Item) *cart.Cart {
	t.Helper()

	ctx := context.Background()
	repo := NewCartRepository(pool)
	require.NoError(t, repo.Create(ctx, userID))
	c, err := repo.FindOpenByUserID(ctx, userID)
	require.NoError(t, err)
	if len(items) > 0 {
		require.NoError(t, repo.ReplaceItems(ctx, c.ID, items))
	}
	c, err = repo.FindOpenByUserID(ctx, userID)
	require.NoError(t, err)
	return c
}

func TestCheckout_Commits(t *testing.T) {
	ctx := context.Background()
	userID := createTestUser(t)
	seedCart(t, userID, cart.Item{ProductID: "p1", Count: 2})

	coord := checkout.NewCoordinator(NewTransactor(pool), 5*time.Second)

	placed, err := coord.Checkout(ctx, userID, order.Address{City: "X"})
	require.NoError(t, err)

	// The order is durable and the cart is gone, in one transaction.
	got, err := NewOrderRepository(pool).FindByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, []order.Item{{ProductID: "p1", Count: 2}}, got.Items)
	assert.Equal(t, order.StatusOpen, got.CurrentStatus())

	_, err = NewCartRepository(pool).FindOpenByUserID(ctx, userID)
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestCheckout_EmptyCartLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	userID := createTestUser(t)
	seedCart(t, userID) // open cart, zero items

	coord := checkout.NewCoordinator(NewTransactor(pool), 5*time.Second)

	_, err := coord.Checkout(ctx, userID, order.Address{})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	// The cart survives and no order was written.
	_, err = NewCartRepository(pool).FindOpenByUserID(ctx, userID)
	require.NoError(t, err)

	orders, err := NewOrderRepository(pool).ListByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckout_ConcurrentExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	userID := createTestUser(t)
	seedCart(t, userID, cart.Item{ProductID: "p1", Count: 1})

	coord := checkout.NewCoordinator(NewTransactor(pool), 5*time.Second)

	// The row lock serializes the two transactions; the loser re-reads after
	// the winner's commit and observes the cart as gone.
	var results [2]error
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(results); i++ {
		g.Go(func() error {
			_, results[i] = coord.Checkout(gctx, userID, order.Address{})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var wins, empties int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, checkout.ErrEmptyCart):
			empties++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, empties)

	orders, err := NewOrderRepository(pool).ListByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	userID := createTestUser(t)
	crt := seedCart(t, userID, cart.Item{ProductID: "p1", Count: 1})

	orderID := uuid.New()
	boom := errors.New("boom")

	err := NewTransactor(pool).InTx(ctx, func(ctx context.Context, s checkout.Store) error {
		o := &order.Order{
			ID:            orderID,
			UserID:        userID,
			CartID:        crt.ID,
			Items:         []order.Item{{ProductID: "p1", Count: 1}},
			StatusHistory: []order.StatusChange{{Status: order.StatusOpen, Timestamp: time.Now()}},
			CreatedAt:     time.Now(),
		}
		if err := s.CreateOrder(ctx, o); err != nil {
			return err
		}
		if err := s.DeleteCart(ctx, crt.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Both writes were rolled back together.
	_, err = NewOrderRepository(pool).FindByID(ctx, orderID)
	require.ErrorIs(t, err, order.ErrNotFound)

	c, err := NewCartRepository(pool).FindOpenByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
}
