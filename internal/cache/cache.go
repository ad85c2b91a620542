package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_shop/internal/domain"
)

// ProductCache defines the interface for product read caching.
// Consumers define this interface, not the Redis implementation.
type ProductCache interface {
	Get(ctx context.Context, productID int64) (*domain.Product, error)
	Set(ctx context.Context, productID int64, product *domain.Product) error
	Delete(ctx context.Context, productID int64) error
}

var ErrCacheMiss = errors.New("cache miss")
