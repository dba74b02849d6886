package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestCreateProduct(t *testing.T) {
	existingProduct := &Product{ID: uuid.NewString(), TenantID: "acme", SKU: "SKU-1", Name: "Book"}
	validReq := CreateProductRequest{SKU: "SKU-1", Name: "Book", PriceCents: 1299}

	testCases := []struct {
		name           string
		tenant         string
		input          CreateProductRequest
		mockInsertErr  error
		expectInsert   bool
		expectFetch    bool
		expectExisting bool
		expectedError  error
	}{
		{
			name:         "happy_case",
			tenant:       "acme",
			input:        validReq,
			expectInsert: true,
		},
		{
			name:           "duplicate_sku_sentinel",
			tenant:         "acme",
			input:          validReq,
			mockInsertErr:  naturalkey.ErrConflict,
			expectInsert:   true,
			expectFetch:    true,
			expectExisting: true,
		},
		{
			name:           "duplicate_sku_postgres",
			tenant:         "acme",
			input:          validReq,
			mockInsertErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: ProductsSKUConstraint},
			expectInsert:   true,
			expectFetch:    true,
			expectExisting: true,
		},
		{
			name:          "general_error",
			tenant:        "acme",
			input:         validReq,
			mockInsertErr: assert.AnError,
			expectInsert:  true,
			expectedError: assert.AnError,
		},
		{
			name:          "missing_tenant",
			tenant:        " ",
			input:         validReq,
			expectedError: ErrNoTenant,
		},
		{
			name:          "invalid_input",
			tenant:        "acme",
			input:         CreateProductRequest{SKU: "", Name: "Book", PriceCents: -1},
			expectedError: ErrInvalidInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockRepo := NewMockRepository(ctrl)
			svc := NewService(mockRepo, naturalkey.WithConstraint(ProductsSKUConstraint))
			svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

			if tc.expectInsert {
				mockRepo.EXPECT().
					Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, p *Product) (*Product, error) {
						assert.Equal(t, tc.tenant, p.TenantID)
						assert.Equal(t, tc.input.SKU, p.SKU)
						_, err := uuid.Parse(p.ID)
						assert.NoError(t, err)
						if tc.mockInsertErr != nil {
							return nil, tc.mockInsertErr
						}
						return p, nil
					})
			}
			if tc.expectFetch {
				mockRepo.EXPECT().
					FindBySKU(gomock.Any(), tc.tenant, tc.input.SKU).
					Return(existingProduct, nil)
			}

			result, existing, err := svc.CreateProduct(context.Background(), tc.tenant, tc.input)

			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, result)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectExisting, existing)
			if tc.expectExisting {
				assert.Equal(t, existingProduct, result)
			} else {
				assert.Equal(t, "Book", result.Name)
				assert.Equal(t, int64(1299), result.PriceCents)
				assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), result.CreatedAt)
			}
		})
	}
}

func TestCreateProductOtherConstraintIsNotResolved(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockRepository(ctrl)
	svc := NewService(mockRepo, naturalkey.WithConstraint(ProductsSKUConstraint))

	pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "products_pkey"}
	mockRepo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, pgErr)

	_, _, err := svc.CreateProduct(context.Background(), "acme", CreateProductRequest{SKU: "A", Name: "B"})
	assert.ErrorIs(t, err, pgErr)
}

func TestGetProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockRepository(ctrl)
	svc := NewService(mockRepo)

	id := uuid.NewString()
	want := &Product{ID: id, TenantID: "acme"}
	mockRepo.EXPECT().FindByID(gomock.Any(), "acme", id).Return(want, nil)

	got, err := svc.GetProduct(context.Background(), "acme", id)
	assert.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetProduct(context.Background(), "acme", "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetProduct(context.Background(), "", id)
	assert.ErrorIs(t, err, ErrNoTenant)
}
