// Package handler exposes the HTTP API: auth endpoints, the profile cart
// resource, and checkout. It translates requests into service calls and maps
// domain errors to status codes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vortelio/cart-service/internal/auth"
	"github.com/vortelio/cart-service/internal/checkout"
	"github.com/vortelio/cart-service/internal/domain/cart"
	"github.com/vortelio/cart-service/internal/domain/order"
)

// Handler wires the domain services to the HTTP routes.
type Handler struct {
	auth     *auth.Service
	carts    *cart.Service
	orders   *order.Service
	checkout *checkout.Coordinator
}

// NewHandler constructs a Handler with the required services.
func NewHandler(
	authSvc *auth.Service,
	carts *cart.Service,
	orders *order.Service,
	coordinator *checkout.Coordinator,
) *Handler {
	return &Handler{
		auth:     authSvc,
		carts:    carts,
		orders:   orders,
		checkout: coordinator,
	}
}

// Routes builds the chi router for the API. Profile and order routes sit
// behind the basic auth guard.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.HealthCheck)
	r.Get("/ping", h.HealthCheck)

	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.BasicAuthGuard)

		r.Get("/api/profile", h.Profile)

		r.Route("/api/profile/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Put("/", h.UpdateCart)
			r.Delete("/", h.ClearCart)
			r.Put("/order", h.Checkout)
			r.Get("/order", h.ListOrders)
		})

		r.Put("/api/order/{orderID}/status", h.AppendOrderStatus)
	})

	return r
}

// HealthCheck answers the unauthenticated liveness ping.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"statusCode": http.StatusOK,
		"message":    "OK",
	})
}

// errorResponse is the JSON shape of every error reply.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// internalError logs the unexpected error with the request-scoped logger and
// replies 500 without leaking details.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
