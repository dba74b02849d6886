package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ValentinKolb/idemkv/lib/idempotency"
	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
)

// NewRouter builds the HTTP API. Mutating product routes run behind the idempotency middleware.
func NewRouter(svc *Service, coord idempotency.ICoordinator) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	r.Route("/v1/products", func(r chi.Router) {
		r.With(idempotency.Middleware(coord)).Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
	})
	return r
}

type handler struct {
	svc *Service
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}

	p, existing, err := h.svc.CreateProduct(r.Context(), idempotency.HeaderTenantResolver(r), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoTenant), errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, naturalkey.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "product is being created, retry later")
		return
	default:
		log.Errorf("failed to create product: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	if existing {
		w.Header().Set(naturalkey.UpsertExistingHeader, "true")
		writeJSON(w, http.StatusOK, p)
		return
	}
	w.Header().Set("Location", "/v1/products/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), idempotency.HeaderTenantResolver(r), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, ErrNoTenant):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Errorf("failed to load product: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
