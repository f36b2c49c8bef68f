package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/vortelio/cart-service/internal/checkout"
	"github.com/vortelio/cart-service/internal/domain/cart"
	"github.com/vortelio/cart-service/internal/domain/order"
)

type putCartRequest struct {
	Items []cart.Item `json:"items"`
}

type checkoutRequest struct {
	Address order.Address `json:"address"`
}

// GetCart returns the items of the user's open cart, creating an empty cart
// on first access.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	c, err := h.carts.FindOrCreateByUserID(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsOrEmpty(c.Items))
}

// UpdateCart replaces the cart's item set and returns the updated items.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req putCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := h.carts.UpdateByUserID(r.Context(), u.ID, req.Items)
	if err != nil {
		var invalidItem *cart.InvalidItemError
		if errors.As(err, &invalidItem) {
			writeError(w, http.StatusBadRequest, invalidItem.Error())
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsOrEmpty(c.Items))
}

// ClearCart deletes the user's cart. Clearing an absent cart is a 200.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.carts.RemoveByUserID(r.Context(), u.ID); err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"statusCode": http.StatusOK,
		"message":    "OK",
	})
}

// Checkout converts the user's cart into an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	placed, err := h.checkout.Checkout(r.Context(), u.ID, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "Cart is empty")
		case errors.Is(err, checkout.ErrConflict):
			writeError(w, http.StatusConflict, "checkout conflict, retry the request")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order": toOrderResponse(placed),
	})
}

// ListOrders returns all orders in the system, newest first. Authentication
// is required but the listing is not scoped to the caller.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.orders.List(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// itemsOrEmpty keeps empty carts serialized as [] instead of null.
func itemsOrEmpty(items []cart.Item) []cart.Item {
	if items == nil {
		return []cart.Item{}
	}
	return items
}
