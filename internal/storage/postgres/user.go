package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vortelio/cart-service/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

const (
	createUserSQL = `INSERT INTO users (id, name, email, password_hash)
	VALUES ($1, $2, $3, $4)`

	findUserByNameSQL = `SELECT id, name, COALESCE(email, ''), password_hash
	FROM users WHERE name = $1`

	findUserByIDSQL = `SELECT id, name, COALESCE(email, ''), password_hash
	FROM users WHERE id = $1`
)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create persists a new user. A taken name surfaces as user.ErrAlreadyExists.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, createUserSQL, u.ID, u.Name, nullable(u.Email), u.PasswordHash)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return user.ErrAlreadyExists
		}
		return errors.Wrapf(err, "create user %q", u.Name)
	}
	return nil
}

// FindByName returns the user with the given unique name.
func (r *UserRepository) FindByName(ctx context.Context, name string) (*user.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, findUserByNameSQL, name))
}

// FindByID returns the user with the given ID.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, findUserByIDSQL, id))
}

func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan user")
	}
	return &u, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
