package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/engines/maple"
	"github.com/ValentinKolb/idemkv/lib/idempotency"
	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outageStore fails lock acquisition while down is set.
type outageStore struct {
	store.IStore
	down atomic.Bool
}

func (s *outageStore) SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.down.Load() {
		return false, store.NewError(store.RetCUnavailable, "connection refused")
	}
	return s.IStore.SetEIfUnset(ctx, key, value, ttl)
}

type apiEnv struct {
	router http.Handler
	repo   *SQLiteRepository
	store  *outageStore
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	inner := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	t.Cleanup(func() { _ = inner.Close() })
	s := &outageStore{IStore: inner}

	cfg := idempotency.DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxWaitAttempts = 400
	coord, err := idempotency.NewCoordinator(s, cfg)
	require.NoError(t, err)

	repo := newSQLiteRepo(t)
	return &apiEnv{router: NewRouter(NewService(repo), coord), repo: repo, store: s}
}

func (e *apiEnv) post(token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/products", strings.NewReader(body))
	req.Header.Set(idempotency.HeaderTenant, "acme")
	if token != "" {
		req.Header.Set(idempotency.HeaderIdempotencyKey, token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeProduct(t *testing.T, w *httptest.ResponseRecorder) Product {
	t.Helper()
	var p Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestIdempotentCreateScenario(t *testing.T) {
	env := newAPIEnv(t)
	f1 := `{"sku":"SKU-1","name":"Book","price_cents":1299}`
	f2 := `{"sku":"SKU-1","name":"Book","price_cents":999}`

	// first call creates
	first := env.post("K1", f1)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	created := decodeProduct(t, first)
	assert.Empty(t, first.Header().Get(idempotency.HeaderReplayed))

	// same token and payload replays byte for byte
	replay := env.post("K1", `{"price_cents":1299,"name":"Book","sku":"SKU-1"}`)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(idempotency.HeaderReplayed))
	assert.Equal(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, first.Header().Get("Location"), replay.Header().Get("Location"))

	// same token, different payload
	conflict := env.post("K1", f2)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	// fresh token, same natural key
	upsert := env.post("K2", f1)
	assert.Equal(t, http.StatusOK, upsert.Code)
	assert.Equal(t, "true", upsert.Header().Get(naturalkey.UpsertExistingHeader))
	assert.Empty(t, upsert.Header().Get(idempotency.HeaderReplayed))
	assert.Equal(t, created.ID, decodeProduct(t, upsert).ID)

	// store outage fails closed without side effects
	env.store.down.Store(true)
	outage := env.post("K3", `{"sku":"SKU-2","name":"Pen"}`)
	assert.Equal(t, http.StatusServiceUnavailable, outage.Code)
	_, err := env.repo.FindBySKU(context.Background(), "acme", "SKU-2")
	assert.ErrorIs(t, err, ErrNotFound)
	env.store.down.Store(false)

	// read back
	req := httptest.NewRequest(http.MethodGet, "/v1/products/"+created.ID, nil)
	req.Header.Set(idempotency.HeaderTenant, "acme")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeProduct(t, w).ID)
}

func TestConcurrentDistinctTokensSameSKU(t *testing.T) {
	env := newAPIEnv(t)

	const workers = 12
	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.post("token-"+string(rune('a'+i)), `{"sku":"HOT","name":"Hot item"}`)
		}(i)
	}
	wg.Wait()

	created, upserted := 0, 0
	var id string
	for _, w := range results {
		p := decodeProduct(t, w)
		if id == "" {
			id = p.ID
		}
		assert.Equal(t, id, p.ID)
		switch w.Code {
		case http.StatusCreated:
			created++
		case http.StatusOK:
			upserted++
			assert.Equal(t, "true", w.Header().Get(naturalkey.UpsertExistingHeader))
		default:
			t.Errorf("unexpected status %d: %s", w.Code, w.Body.String())
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, upserted)
}

func TestConcurrentSameTokenExecutesOnce(t *testing.T) {
	env := newAPIEnv(t)

	const workers = 12
	var wg sync.WaitGroup
	results := make([]*httptest.ResponseRecorder, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.post("shared", `{"sku":"ONCE","name":"Once"}`)
		}(i)
	}
	wg.Wait()

	replayed := 0
	for _, w := range results {
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Empty(t, w.Header().Get(naturalkey.UpsertExistingHeader))
		if w.Header().Get(idempotency.HeaderReplayed) == "true" {
			replayed++
		}
		assert.Equal(t, results[0].Body.String(), w.Body.String())
	}
	assert.Equal(t, workers-1, replayed)
}

func TestRequestValidation(t *testing.T) {
	env := newAPIEnv(t)

	tests := []struct {
		name   string
		tenant string
		body   string
		want   int
	}{
		{"malformed_json", "acme", `{`, http.StatusBadRequest},
		{"missing_sku", "acme", `{"name":"x"}`, http.StatusBadRequest},
		{"negative_price", "acme", `{"sku":"a","name":"x","price_cents":-1}`, http.StatusBadRequest},
		{"missing_tenant", "", `{"sku":"a","name":"x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/products", strings.NewReader(tt.body))
			if tt.tenant != "" {
				req.Header.Set(idempotency.HeaderTenant, tt.tenant)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)

	for path, want := range map[string]string{"/healthz": "ok", "/metrics": "idempotency_"} {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), want, path)
	}
}
