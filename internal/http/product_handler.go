package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProductService interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
}

type ProductHandler struct {
	products ProductService
	timeout  time.Duration
}

func NewProductHandler(products ProductService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type CreateProductRequestDTO struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int32   `json:"stock"`
	ImageURL    string  `json:"image_url"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.ListProducts(ctx)
	if err != nil {
		respondInternalError(w)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "id", "id must be a positive integer")
		return
	}

	product, err := h.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "id", "Product not found")
			return
		}
		respondInternalError(w)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "body", "invalid JSON body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name", "name is required")
		return
	}
	if req.Price < 0 {
		respondError(w, http.StatusBadRequest, "price", "price must not be negative")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "stock", "stock must not be negative")
		return
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}
	if err := h.products.CreateProduct(ctx, product); err != nil {
		respondInternalError(w)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}
