package catalog

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=catalog

import "context"

// Repository persists products. Insert must fail with an error recognized by
// naturalkey.IsUniqueViolation when (tenant, sku) is taken.
type Repository interface {
	Migrate(ctx context.Context) error
	Insert(ctx context.Context, p *Product) (*Product, error)
	FindBySKU(ctx context.Context, tenant, sku string) (*Product, error)
	FindByID(ctx context.Context, tenant, id string) (*Product, error)
	Close() error
}
