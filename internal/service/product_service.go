package service

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"golang.org/x/sync/singleflight"
)

type ProductService struct {
	repo  repository.RepoInterface
	cache cache.ProductCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewProductService(repo repository.RepoInterface, cache cache.ProductCache) *ProductService {
	return &ProductService{
		repo:  repo,
		cache: cache,
	}
}

func (s *ProductService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(cacheGroupKey(productID), func() (interface{}, error) {

		product, err := s.cache.Get(ctx, productID)
		if err == nil {
			return product, nil // product is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		product, errGet := s.repo.GetProduct(ctx, productID)
		if errGet != nil && errors.Is(errGet, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), productID, product)
			if errSet != nil {
				log.Printf("cache set error: %v \n", errSet)
			}
		}()

		return product, nil // product was not in cache, return it from repo
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Product), nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *ProductService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if errCreate := s.repo.CreateProduct(ctx, product); errCreate != nil {
		log.Printf("repo create product error: %v \n", errCreate)
		return errCreate
	}
	return nil
}

func cacheGroupKey(productID int64) string {
	return "product-" + strconv.FormatInt(productID, 10)
}
