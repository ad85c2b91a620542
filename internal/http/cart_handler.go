package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
)

// ReservationService is the cart mutation surface consumed by this handler.
type ReservationService interface {
	AddToCart(ctx context.Context, clientID, productID int64, quantity int32) (*domain.CartLine, error)
	RemoveFromCart(ctx context.Context, clientID, productID int64, quantity int32) (*domain.CartLine, error)
	GetCart(ctx context.Context, clientID int64) ([]*domain.CartLine, error)
}

type CartHandler struct {
	reservations ReservationService
	timeout      time.Duration
}

func NewCartHandler(reservations ReservationService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		reservations: reservations,
		timeout:      timeout,
	}
}

type CartItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Timestamp time.Time    `json:"timestamp"`
	Errors    []FieldError `json:"errors"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == 0 {
		respondError(w, http.StatusUnauthorized, "client", "missing client identity")
		return
	}

	// Parse request body
	var req CartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "body", "invalid JSON body")
		return
	}

	// Validate request
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity", "quantity must be positive")
		return
	}

	line, err := h.reservations.AddToCart(ctx, clientID, req.ProductID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == 0 {
		respondError(w, http.StatusUnauthorized, "client", "missing client identity")
		return
	}

	var req CartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "body", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity", "quantity must be positive")
		return
	}

	line, err := h.reservations.RemoveFromCart(ctx, clientID, req.ProductID, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, line)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == 0 {
		respondError(w, http.StatusUnauthorized, "client", "missing client identity")
		return
	}

	lines, err := h.reservations.GetCart(ctx, clientID)
	if err != nil {
		respondInternalError(w)
		return
	}
	if lines == nil {
		lines = []*domain.CartLine{}
	}

	respondJSON(w, http.StatusOK, lines)
}

func handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		respondError(w, http.StatusBadRequest, "product_id", "Product not found")
	case errors.Is(err, service.ErrOutOfStock):
		respondError(w, http.StatusBadRequest, "stock", "Product stock not available")
	case errors.Is(err, service.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "quantity", "quantity must be positive")
	case errors.Is(err, service.ErrInsufficientCartQuantity):
		respondError(w, http.StatusBadRequest, "quantity", "Cart item quantity not available")
	case errors.Is(err, service.ErrCartLineNotFound):
		respondError(w, http.StatusNotFound, "product_id", "Cart Item not found")
	default:
		respondInternalError(w)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, field, message string) {
	respondJSON(w, status, ErrorResponse{
		Timestamp: time.Now().UTC(),
		Errors:    []FieldError{{Field: field, Message: message}},
	})
}

func respondInternalError(w http.ResponseWriter) {
	respondError(w, http.StatusInternalServerError, "", "Internal Error: Something went wrong!")
}
