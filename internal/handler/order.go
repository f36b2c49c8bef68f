package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/vortelio/cart-service/internal/domain/order"
)

type orderResponse struct {
	ID            uuid.UUID            `json:"id"`
	UserID        uuid.UUID            `json:"userId"`
	CartID        uuid.UUID            `json:"cartId"`
	Items         []order.Item         `json:"items"`
	Address       order.Address        `json:"address"`
	StatusHistory []order.StatusChange `json:"statusHistory"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type appendStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		CartID:        o.CartID,
		Items:         o.Items,
		Address:       o.Address,
		StatusHistory: o.StatusHistory,
		CreatedAt:     o.CreatedAt,
	}
}

// AppendOrderStatus appends a validated status transition to an order's
// history. Blind full-row updates are not offered: history can only grow.
func (h *Handler) AppendOrderStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req appendStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	existing, err := h.orders.FindByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		internalError(w, r, err)
		return
	}
	if existing.UserID != u.ID {
		// Orders are private; reveal nothing beyond "not found".
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	updated, err := h.orders.AppendStatus(r.Context(), orderID, order.Status(req.Status), req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}
