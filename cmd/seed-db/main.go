// Command seed-db provisions a demo user with an open cart, for local
// development and smoke testing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vortelio/cart-service/internal/domain/cart"
	"github.com/vortelio/cart-service/internal/domain/user"
	"github.com/vortelio/cart-service/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		name        string
		password    string
		email       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&name, "name", "demo", "demo user name")
	flag.StringVar(&password, "password", "", "demo user password (or CART_SEED_PASSWORD env)")
	flag.StringVar(&email, "email", "", "demo user email")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if password == "" {
		password = os.Getenv("CART_SEED_PASSWORD")
	}
	if password == "" {
		slog.Error("password is required: set --password or CART_SEED_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, name, email, password); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, name, email, password string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	users := postgres.NewUserRepository(pool)
	u := &user.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			slog.Info("user already exists, skipping", slog.String("name", name))
			return nil
		}
		return errors.Wrap(err, "create user")
	}
	slog.Info("created user", slog.String("id", u.ID.String()), slog.String("name", name))

	carts := cart.NewService(postgres.NewCartRepository(pool))
	c, err := carts.UpdateByUserID(ctx, u.ID, []cart.Item{
		{ProductID: "demo-product-1", Count: 2},
		{ProductID: "demo-product-2", Count: 1},
	})
	if err != nil {
		return errors.Wrap(err, "seed cart")
	}
	slog.Info("created cart", slog.String("id", c.ID.String()), slog.Int("items", len(c.Items)))

	return nil
}
