package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quickcart/apiserver/internal/auth"
	"github.com/quickcart/apiserver/internal/services"
	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
)

// OrderHandler provides HTTP handlers for checkout and order history.
type OrderHandler struct {
	orderService *services.OrderService
}

// NewOrderHandler constructs a handler with the provided service.
func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// OrderRouter registers order routes. Every route requires authentication.
func OrderRouter(
	r chi.Router,
	orderService *services.OrderService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewOrderHandler(orderService)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.CreateOrder)
		r.Get("/me", handler.ListMyOrders)
	})
}

// CreateOrder places an order owned by the authenticated caller. Any user
// id in the body is ignored.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNoToken)
		return
	}

	var req CreateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	order, err := h.orderService.Create(r.Context(), identity.UserID, req.Items, req.TotalAmount)
	if err != nil {
		writeServiceError(w, err, "failed to create order")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgNoToken)
		return
	}

	orders, err := h.orderService.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type CreateOrderRequest struct {
	Items       []types.OrderItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}
