package service

import "errors"

var (
	ErrProductNotFound          = errors.New("product not found")
	ErrCartLineNotFound         = errors.New("cart line not found")
	ErrOutOfStock               = errors.New("product stock not available")
	ErrInsufficientCartQuantity = errors.New("cart line quantity not available")
	ErrEmptyCart                = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity          = errors.New("quantity must be positive")
	ErrInvalidStatus            = errors.New("invalid transaction status")
)
