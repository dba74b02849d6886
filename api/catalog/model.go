package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Product is a catalog entry.
type Product struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateProductRequest is the body of POST /v1/products.
type CreateProductRequest struct {
	SKU        string `json:"sku" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=256"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
}

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoTenant     = errors.New("missing tenant")
)

var validate = validator.New()

// Validate checks the request.
func (r CreateProductRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
