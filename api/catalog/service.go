package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("api")

// Service implements the product use cases.
type Service struct {
	repo     Repository
	resolver *naturalkey.Resolver[*Product]
	now      func() time.Time
}

// NewService creates a service on repo. Resolver options are passed through, e.g. to restrict
// conflict detection to ProductsSKUConstraint.
func NewService(repo Repository, opts ...naturalkey.Option) *Service {
	return &Service{
		repo:     repo,
		resolver: naturalkey.NewResolver(repo.FindBySKU, opts...),
		now:      time.Now,
	}
}

// CreateProduct creates a product or, if the tenant already has one with the same sku,
// returns that one with existing=true.
func (s *Service) CreateProduct(ctx context.Context, tenant string, req CreateProductRequest) (p *Product, existing bool, err error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, false, ErrNoTenant
	}
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	p, existing, err = s.resolver.ResolveOrCreate(ctx, tenant, req.SKU, func(ctx context.Context) (*Product, error) {
		return s.repo.Insert(ctx, &Product{
			ID:         uuid.NewString(),
			TenantID:   tenant,
			SKU:        req.SKU,
			Name:       req.Name,
			PriceCents: req.PriceCents,
			CreatedAt:  s.now().UTC(),
		})
	})
	if err != nil {
		return nil, false, err
	}
	if existing {
		log.Infof("sku %q of tenant %q already exists as %s", req.SKU, tenant, p.ID)
	}
	return p, existing, nil
}

// GetProduct returns the product with id of the tenant.
func (s *Service) GetProduct(ctx context.Context, tenant, id string) (*Product, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, ErrNoTenant
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.FindByID(ctx, tenant, id)
}
