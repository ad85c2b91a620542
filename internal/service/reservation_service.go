package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
)

// ReservationService keeps product stock and the client's cart line for that
// product consistent: stock is reserved at add-time and released at
// remove-time, never deferred to checkout. Each operation runs as one
// storage transaction, so a stock mutation and its paired cart line mutation
// either both apply or neither does.
type ReservationService struct {
	repo  repository.RepoInterface
	cache cache.ProductCache
}

func NewReservationService(repo repository.RepoInterface, cache cache.ProductCache) *ReservationService {
	return &ReservationService{
		repo:  repo,
		cache: cache,
	}
}

func (s *ReservationService) AddToCart(ctx context.Context, clientID, productID int64, quantity int32) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var line *domain.CartLine
	err := s.repo.WithinTx(ctx, func(q repository.TxQueries) error {
		product, errGet := q.GetProductForUpdate(ctx, productID)
		if errors.Is(errGet, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		if errGet != nil {
			return errGet
		}
		if product.Stock < quantity {
			return ErrOutOfStock
		}

		existing, errFind := q.FindActiveCartLineForUpdate(ctx, clientID, productID)
		switch {
		case errFind == nil:
			existing.Quantity += quantity
			existing.LineTotal = float64(existing.Quantity) * product.Price
			if errUpd := q.UpdateActiveCartLine(ctx, existing.ID, existing.Quantity, existing.LineTotal); errUpd != nil {
				return errUpd
			}
			existing.UpdatedAt = time.Now().UTC()
			line = existing
		case errors.Is(errFind, repository.ErrCartLineNotFound):
			line = &domain.CartLine{
				ID:        uuid.New(),
				ClientID:  clientID,
				ProductID: productID,
				Quantity:  quantity,
				LineTotal: float64(quantity) * product.Price,
				Status:    domain.CartLineStatusActive,
			}
			if errCreate := q.CreateCartLine(ctx, line); errCreate != nil {
				return errCreate
			}
		default:
			return errFind
		}

		// Re-checks availability at decrement time; a concurrent add that
		// slipped past the read would make this fail and roll back the unit.
		if errDec := q.DecrementStock(ctx, productID, quantity); errDec != nil {
			if errors.Is(errDec, repository.ErrOutOfStock) {
				return ErrOutOfStock
			}
			return errDec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProduct(productID)
	return line, nil
}

func (s *ReservationService) RemoveFromCart(ctx context.Context, clientID, productID int64, quantity int32) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var line *domain.CartLine
	err := s.repo.WithinTx(ctx, func(q repository.TxQueries) error {
		product, errGet := q.GetProductForUpdate(ctx, productID)
		if errors.Is(errGet, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		if errGet != nil {
			return errGet
		}

		existing, errFind := q.FindActiveCartLineForUpdate(ctx, clientID, productID)
		if errors.Is(errFind, repository.ErrCartLineNotFound) {
			return ErrCartLineNotFound
		}
		if errFind != nil {
			return errFind
		}
		if existing.Quantity < quantity {
			return ErrInsufficientCartQuantity
		}

		existing.Quantity -= quantity
		existing.LineTotal = float64(existing.Quantity) * product.Price
		if existing.Quantity == 0 {
			if errDel := q.DeleteActiveCartLine(ctx, existing.ID); errDel != nil {
				return errDel
			}
		} else {
			if errUpd := q.UpdateActiveCartLine(ctx, existing.ID, existing.Quantity, existing.LineTotal); errUpd != nil {
				return errUpd
			}
		}
		existing.UpdatedAt = time.Now().UTC()
		line = existing

		// Restocking is the pure inverse of reservation, no availability check.
		return q.IncrementStock(ctx, productID, quantity)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProduct(productID)
	return line, nil
}

// GetCart returns the client's pending purchases.
func (s *ReservationService) GetCart(ctx context.Context, clientID int64) ([]*domain.CartLine, error) {
	return s.repo.FindActiveCartLines(ctx, clientID)
}

func (s *ReservationService) invalidateProduct(productID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, productID); err != nil {
		log.Printf("cache invalidate error: %v \n", err)
	}
}
