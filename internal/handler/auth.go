package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/vortelio/cart-service/internal/auth"
	"github.com/vortelio/cart-service/internal/domain/user"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID uuid.UUID `json:"userId"`
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Method   string `json:"method,omitempty"`
}

type profileUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

// Register creates a new account and returns its ID.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	userID, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "user with such name already exists")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{UserID: userID})
}

// Login verifies credentials and issues a basic token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	method := auth.Method(req.Method)
	if req.Method == "" {
		method = auth.MethodDefault
	}

	token, err := h.auth.Login(r.Context(), req.Name, req.Password, method)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrUnknownMethod):
			writeError(w, http.StatusBadRequest, "unknown login method")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// Profile returns the authenticated user without its credential hash.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": profileUser{ID: u.ID, Name: u.Name, Email: u.Email},
	})
}
