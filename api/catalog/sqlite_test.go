package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	p := &Product{ID: uuid.NewString(), TenantID: "acme", SKU: "SKU-1", Name: "Book", PriceCents: 100}
	_, err := repo.Insert(ctx, p)
	require.NoError(t, err)

	bySKU, err := repo.FindBySKU(ctx, "acme", "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySKU.ID)

	byID, err := repo.FindByID(ctx, "acme", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Book", byID.Name)

	_, err = repo.FindByID(ctx, "globex", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	dup := &Product{ID: uuid.NewString(), TenantID: "acme", SKU: "SKU-1", Name: "Other"}
	_, err = repo.Insert(ctx, dup)
	assert.True(t, naturalkey.IsUniqueViolation(err, ""))

	other := &Product{ID: uuid.NewString(), TenantID: "globex", SKU: "SKU-1", Name: "Other"}
	_, err = repo.Insert(ctx, other)
	assert.NoError(t, err, "skus are unique per tenant only")
}

func TestConcurrentCreatesPersistOneRow(t *testing.T) {
	repo := newSQLiteRepo(t)
	svc := NewService(repo)

	const workers = 16
	var wg sync.WaitGroup
	ids := make([]string, workers)
	existing := make([]bool, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, ex, err := svc.CreateProduct(context.Background(), "acme", CreateProductRequest{SKU: "RACE", Name: "Racer"})
			errs[i], existing[i] = err, ex
			if p != nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if !existing[i] {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	var rows int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM products WHERE sku = 'RACE'`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
