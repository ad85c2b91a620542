package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
)

// CheckoutService converts a client's current active cart into exactly one
// transaction. Stock is not touched here: it was reserved at add-time, and
// checkout only reclassifies the reservations as finalized.
type CheckoutService struct {
	repo repository.RepoInterface
}

func NewCheckoutService(repo repository.RepoInterface) *CheckoutService {
	return &CheckoutService{repo: repo}
}

func (s *CheckoutService) Checkout(ctx context.Context, clientID int64) (*domain.Transaction, error) {
	var trans *domain.Transaction
	err := s.repo.WithinTx(ctx, func(q repository.TxQueries) error {
		// The row locks taken here exclude a second concurrent checkout from
		// claiming any of the same lines.
		lines, errFind := q.FindActiveCartLinesForUpdate(ctx, clientID)
		if errFind != nil {
			return errFind
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		var total float64
		for _, line := range lines {
			total += line.LineTotal
		}

		trans = &domain.Transaction{
			ID:       uuid.New(),
			ClientID: clientID,
			Total:    total,
			Status:   domain.TransactionStatusPaid,
		}
		if errCreate := q.CreateTransaction(ctx, trans); errCreate != nil {
			return errCreate
		}

		claimed, errComplete := q.CompleteCartLines(ctx, clientID, trans.ID)
		if errComplete != nil {
			return errComplete
		}
		if claimed != int64(len(lines)) {
			return fmt.Errorf("claimed %d of %d cart lines: %w", claimed, len(lines), repository.ErrCartLineNotFound)
		}

		for _, line := range lines {
			line.Status = domain.CartLineStatusCompleted
			line.TransactionID = uuid.NullUUID{UUID: trans.ID, Valid: true}
		}
		trans.Lines = lines

		payload, errMarshal := json.Marshal(map[string]interface{}{
			"transaction_id": trans.ID,
			"client_id":      clientID,
			"total":          total,
			"status":         trans.Status,
			"items":          lines,
			"created_at":     time.Now().UTC(),
		})
		if errMarshal != nil {
			return fmt.Errorf("failed to marshal transaction payload: %w", errMarshal)
		}

		return q.InsertOutboxEvent(ctx, trans.ID.String(), "TransactionCreated", payload)
	})
	if err != nil {
		return nil, err
	}

	return trans, nil
}

func (s *CheckoutService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	trans, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.FindCartLinesByTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	trans.Lines = lines

	return trans, nil
}

func (s *CheckoutService) ListTransactions(ctx context.Context, clientID int64) ([]*domain.Transaction, error) {
	return s.repo.ListTransactionsByClient(ctx, clientID)
}

// UpdateStatus is the administrative status edit outside the checkout path.
func (s *CheckoutService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	if status != domain.TransactionStatusUnpaid && status != domain.TransactionStatusPaid {
		return ErrInvalidStatus
	}
	return s.repo.UpdateTransactionStatus(ctx, id, status)
}
