package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/vortelio/cart-service/internal/auth"
	"github.com/vortelio/cart-service/internal/domain/user"
)

// userKey is the context key for the authenticated user.
type userKey struct{}

// UserFromContext returns the authenticated user stored by BasicAuthGuard.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userKey{}).(*user.User)
	return u, ok
}

// BasicAuthGuard authenticates requests via the Basic scheme issued at login.
// The verified user is stored in the request context; the rest of the API
// trusts that identity.
func (h *Handler) BasicAuthGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Basic") {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		name, password, err := auth.DecodeBasicToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		u, err := h.auth.Authenticate(r.Context(), name, password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
