package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CheckoutService interface {
	Checkout(ctx context.Context, clientID int64) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, clientID int64) ([]*domain.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error
}

type TransactionHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewTransactionHandler(checkout CheckoutService, timeout time.Duration) *TransactionHandler {
	return &TransactionHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

func (h *TransactionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == 0 {
		respondError(w, http.StatusUnauthorized, "client", "missing client identity")
		return
	}

	trans, err := h.checkout.Checkout(ctx, clientID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "cart", "cart is empty, nothing to checkout")
			return
		}
		respondInternalError(w)
		return
	}

	respondJSON(w, http.StatusCreated, trans)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	clientID := getClientIDFromContext(r.Context())
	if clientID == 0 {
		respondError(w, http.StatusUnauthorized, "client", "missing client identity")
		return
	}

	transactions, err := h.checkout.ListTransactions(ctx, clientID)
	if err != nil {
		respondInternalError(w)
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}

	respondJSON(w, http.StatusOK, transactions)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "id", "id must be a valid UUID")
		return
	}

	trans, err := h.checkout.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			respondError(w, http.StatusNotFound, "id", "Transaction not found")
			return
		}
		respondInternalError(w)
		return
	}

	respondJSON(w, http.StatusOK, trans)
}

func (h *TransactionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "id", "id must be a valid UUID")
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "body", "invalid JSON body")
		return
	}

	errUpdate := h.checkout.UpdateStatus(ctx, id, domain.TransactionStatus(req.Status))
	if errUpdate != nil {
		switch {
		case errors.Is(errUpdate, service.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, "status", "status must be UNPAID or PAID")
		case errors.Is(errUpdate, repository.ErrTransactionNotFound):
			respondError(w, http.StatusNotFound, "id", "Transaction not found")
		default:
			respondInternalError(w)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}
