package idempotency

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Call", string(rune('0'+n)))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
}

func doRequest(h http.Handler, method, token, tenant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/v1/things", strings.NewReader(body))
	if token != "" {
		req.Header.Set(HeaderIdempotencyKey, token)
	}
	if tenant != "" {
		req.Header.Set(HeaderTenant, tenant)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareReplays(t *testing.T) {
	env := newTestEnv(t, testConfig())
	var calls atomic.Int32
	h := Middleware(env.coord)(newTestHandler(&calls))

	first := doRequest(h, http.MethodPost, "tok", "acme", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, `{"a":1}`, first.Body.String())
	assert.Empty(t, first.Header().Get(HeaderReplayed))

	second := doRequest(h, http.MethodPost, "tok", "acme", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, `{"a":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, "1", second.Header().Get("X-Call"))

	assert.Equal(t, int32(1), calls.Load())
}

func TestMiddlewarePassThrough(t *testing.T) {
	env := newTestEnv(t, testConfig())
	var calls atomic.Int32
	h := Middleware(env.coord)(newTestHandler(&calls))

	doRequest(h, http.MethodPost, "", "acme", `{}`)
	doRequest(h, http.MethodPost, "", "acme", `{}`)
	doRequest(h, http.MethodGet, "tok", "acme", ``)
	doRequest(h, http.MethodGet, "tok", "acme", ``)

	assert.Equal(t, int32(4), calls.Load())
}

func TestMiddlewareErrors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	var calls atomic.Int32
	h := Middleware(env.coord)(newTestHandler(&calls))

	doRequest(h, http.MethodPost, "tok", "acme", `{"a":1}`)
	conflict := doRequest(h, http.MethodPost, "tok", "acme", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(conflict.Body.Bytes(), &body))
	assert.Equal(t, "token_conflict", body["kind"])

	env.store.failGet.Store(true)
	unavailable := doRequest(h, http.MethodPost, "other", "acme", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMiddlewareCustomHeaders(t *testing.T) {
	env := newTestEnv(t, testConfig())
	var calls atomic.Int32
	h := Middleware(env.coord,
		WithTokenHeader("X-Request-Key"),
		WithTenantResolver(func(r *http.Request) string { return r.URL.Query().Get("tenant") }),
	)(newTestHandler(&calls))

	send := func(tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/things?tenant="+tenant, strings.NewReader(`{}`))
		req.Header.Set("X-Request-Key", "k")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	send("a")
	assert.Equal(t, "true", send("a").Header().Get(HeaderReplayed))
	assert.Empty(t, send("b").Header().Get(HeaderReplayed))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWriteErrorTooEarly(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, &Error{Kind: KindLockUnavailable, Token: "t"})

	assert.Equal(t, http.StatusTooEarly, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "lock_unavailable")
}

func TestMiddlewareWaiterGetsReplay(t *testing.T) {
	env := newTestEnv(t, testConfig())
	release := make(chan struct{})
	var calls atomic.Int32
	h := Middleware(env.coord)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.WriteHeader(http.StatusAccepted)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- doRequest(h, http.MethodPost, "tok", "acme", `{}`) }()
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	time.Sleep(5 * time.Millisecond)
	second := doRequest(h, http.MethodPost, "tok", "acme", `{}`)
	first := <-done

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMiddlewareDoesNotRecordServiceUnavailable(t *testing.T) {
	env := newTestEnv(t, testConfig())
	var calls atomic.Int32
	h := Middleware(env.coord)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := doRequest(h, http.MethodPost, "tok", "acme", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Contains(t, first.Body.String(), "try again")

	second := doRequest(h, http.MethodPost, "tok", "acme", `{}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get(HeaderReplayed))
	assert.Equal(t, int32(2), calls.Load())
}
