package naturalkey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID     int
	Tenant string
	Key    string
}

// table is a minimal in-memory table with a unique (tenant, key) constraint.
type table struct {
	mu     sync.Mutex
	nextID int
	rows   map[string]item
}

func newTable() *table { return &table{rows: map[string]item{}} }

func (t *table) insert(tenant, key string) (item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := tenant + "|" + key
	if _, ok := t.rows[k]; ok {
		return item{}, &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "items_tenant_key"}
	}
	t.nextID++
	it := item{ID: t.nextID, Tenant: tenant, Key: key}
	t.rows[k] = it
	return it, nil
}

func (t *table) find(_ context.Context, tenant, key string) (item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, ok := t.rows[tenant+"|"+key]
	if !ok {
		return item{}, errors.New("not found")
	}
	return it, nil
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "products_tenant_sku"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"sentinel", ErrConflict, "", true},
		{"wrapped_sentinel", fmt.Errorf("insert: %w", ErrConflict), "", true},
		{"postgres", pgErr, "", true},
		{"wrapped_postgres", fmt.Errorf("insert: %w", pgErr), "", true},
		{"postgres_matching_constraint", pgErr, "products_tenant_sku", true},
		{"postgres_other_constraint", pgErr, "products_name", false},
		{"postgres_other_code", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, "", false},
		{"plain_error", assertAnError, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

var assertAnError = errors.New("some failure")

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()
	tbl := newTable()
	r := NewResolver(tbl.find)

	created, existing, err := r.ResolveOrCreate(ctx, "acme", "SKU-1", func(ctx context.Context) (item, error) {
		return tbl.insert("acme", "SKU-1")
	})
	require.NoError(t, err)
	assert.False(t, existing)

	again, existing, err := r.ResolveOrCreate(ctx, "acme", "SKU-1", func(ctx context.Context) (item, error) {
		return tbl.insert("acme", "SKU-1")
	})
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, created, again)

	other, existing, err := r.ResolveOrCreate(ctx, "globex", "SKU-1", func(ctx context.Context) (item, error) {
		return tbl.insert("globex", "SKU-1")
	})
	require.NoError(t, err)
	assert.False(t, existing, "natural keys are scoped to the tenant")
	assert.NotEqual(t, created.ID, other.ID)
}

func TestResolveOrCreatePropagatesOtherErrors(t *testing.T) {
	var fetches atomic.Int32
	r := NewResolver(func(ctx context.Context, tenant, key string) (item, error) {
		fetches.Add(1)
		return item{}, nil
	})

	_, existing, err := r.ResolveOrCreate(context.Background(), "acme", "k", func(ctx context.Context) (item, error) {
		return item{}, assertAnError
	})
	assert.ErrorIs(t, err, assertAnError)
	assert.False(t, existing)
	assert.Zero(t, fetches.Load())
}

func TestResolveOrCreateRetriesFetch(t *testing.T) {
	var fetches atomic.Int32
	r := NewResolver(func(ctx context.Context, tenant, key string) (item, error) {
		if fetches.Add(1) < 3 {
			return item{}, errors.New("not visible")
		}
		return item{ID: 7, Tenant: tenant, Key: key}, nil
	}, WithFetchRetries(5, time.Millisecond, 2*time.Millisecond))

	got, existing, err := r.ResolveOrCreate(context.Background(), "acme", "k", func(ctx context.Context) (item, error) {
		return item{}, ErrConflict
	})
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, int32(3), fetches.Load())
}

func TestResolveOrCreateGivesUp(t *testing.T) {
	var fetches atomic.Int32
	notVisible := errors.New("not visible")
	r := NewResolver(func(ctx context.Context, tenant, key string) (item, error) {
		fetches.Add(1)
		return item{}, notVisible
	}, WithFetchRetries(3, time.Millisecond, time.Millisecond))

	got, existing, err := r.ResolveOrCreate(context.Background(), "acme", "k", func(ctx context.Context) (item, error) {
		return item{}, ErrConflict
	})
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, notVisible)
	assert.False(t, existing)
	assert.Zero(t, got, "never fabricate an entity")
	assert.Equal(t, int32(3), fetches.Load())
}

func TestResolveOrCreateHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewResolver(func(ctx context.Context, tenant, key string) (item, error) {
		cancel()
		return item{}, errors.New("not visible")
	}, WithFetchRetries(10, time.Second, time.Second))

	_, _, err := r.ResolveOrCreate(ctx, "acme", "k", func(ctx context.Context) (item, error) {
		return item{}, ErrConflict
	})
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentCreatesConverge(t *testing.T) {
	tbl := newTable()
	r := NewResolver(tbl.find, WithConstraint("items_tenant_key"))

	const workers = 32
	var wg sync.WaitGroup
	results := make([]item, workers)
	existing := make([]bool, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], existing[i], errs[i] = r.ResolveOrCreate(context.Background(), "acme", "SKU-1", func(ctx context.Context) (item, error) {
				return tbl.insert("acme", "SKU-1")
			})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
		if !existing[i] {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, tbl.rows, 1)
}
