// Package auth implements registration, credential verification, and token
// issuing for the HTTP basic auth scheme the API uses.
package auth

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vortelio/cart-service/internal/domain/user"
)

// Sentinel errors for credential handling.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownMethod      = errors.New("unknown login method")
)

// Method selects the token scheme issued at login. Dispatch is an exhaustive
// switch; unknown values are rejected rather than silently falling back.
type Method string

const (
	// MethodBasic issues an HTTP Basic token.
	MethodBasic Method = "basic"
	// MethodDefault is an alias clients may send; it resolves to basic.
	MethodDefault Method = "default"
)

// Token is the response of a successful login.
type Token struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

// Service verifies credentials against bcrypt hashes and issues tokens.
type Service struct {
	users      user.Repository
	bcryptCost int
}

// NewService creates an auth Service. cost is the bcrypt work factor; values
// below bcrypt.MinCost fall back to bcrypt.DefaultCost.
func NewService(users user.Repository, cost int) *Service {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, bcryptCost: cost}
}

// Register creates a new user with a bcrypt-hashed password and returns its
// ID. A taken name yields user.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, name, email, password string) (uuid.UUID, error) {
	if name == "" || password == "" {
		return uuid.Nil, errors.New("name and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "hash password")
	}

	u := &user.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

// Authenticate verifies a name/password pair and returns the matching user.
// Unknown names and wrong passwords are indistinguishable to the caller: both
// yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, name, password string) (*user.User, error) {
	u, err := s.users.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates the credentials and issues a token for the requested
// method.
func (s *Service) Login(ctx context.Context, name, password string, m Method) (*Token, error) {
	if _, err := s.Authenticate(ctx, name, password); err != nil {
		return nil, err
	}

	switch m {
	case MethodBasic, MethodDefault:
		return basicToken(name, password), nil
	default:
		return nil, errors.Wrapf(ErrUnknownMethod, "%q", m)
	}
}

// basicToken encodes name:password the way HTTP Basic authentication expects.
func basicToken(name, password string) *Token {
	raw := name + ":" + password
	return &Token{
		TokenType:   "Basic",
		AccessToken: base64.StdEncoding.EncodeToString([]byte(raw)),
	}
}

// DecodeBasicToken splits a base64 name:password token back into credentials.
func DecodeBasicToken(token string) (name, password string, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", errors.Wrap(err, "decode token")
	}
	name, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", errors.New("malformed token")
	}
	return name, password, nil
}
