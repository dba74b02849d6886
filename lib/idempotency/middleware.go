package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// HTTP header names used by the middleware.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	HeaderTenant         = "X-Tenant-ID"
)

var errTransientResponse = errors.New("handler answered 503")

// MaxBodyBytes limits the request body read for fingerprinting. Larger bodies are
// answered with 413.
const MaxBodyBytes = 8 << 20

// TenantResolver extracts the tenant of a request.
type TenantResolver func(r *http.Request) string

// HeaderTenantResolver reads the tenant from the X-Tenant-ID header.
func HeaderTenantResolver(r *http.Request) string {
	return r.Header.Get(HeaderTenant)
}

type middlewareOptions struct {
	tokenHeader string
	tenant      TenantResolver
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

// WithTokenHeader changes the header the token is read from.
func WithTokenHeader(name string) MiddlewareOption {
	return func(o *middlewareOptions) { o.tokenHeader = name }
}

// WithTenantResolver changes how the tenant is determined.
func WithTenantResolver(r TenantResolver) MiddlewareOption {
	return func(o *middlewareOptions) { o.tenant = r }
}

// Middleware wraps next so mutating requests carrying an idempotency token run at most once.
// The wrapped handler's response is buffered, recorded and then written. Replays carry the
// Idempotent-Replayed header.
func Middleware(c ICoordinator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := &middlewareOptions{
		tokenHeader: HeaderIdempotencyKey,
		tenant:      HeaderTenantResolver,
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(o.tokenHeader)
			if token == "" || !IsMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
			if err != nil {
				http.Error(w, "could not read request body", http.StatusBadRequest)
				return
			}
			if len(body) > MaxBodyBytes {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			req := Request{
				Tenant: o.tenant(r),
				Token:  token,
				Method: r.Method,
				Body:   body,
			}
			var rec *recorder
			resp, err := c.Execute(r.Context(), req, func(ctx context.Context) (*Response, error) {
				rec = newRecorder()
				r2 := r.WithContext(ctx)
				r2.Body = io.NopCloser(bytes.NewReader(body))
				next.ServeHTTP(rec, r2)
				return rec.result()
			})
			switch {
			case resp != nil:
				WriteResponse(w, resp)
			case rec != nil && isNoCache(err):
				WriteResponse(w, rec.response())
			default:
				WriteError(w, err)
			}
		})
	}
}

// WriteResponse writes a coordinator response.
func WriteResponse(w http.ResponseWriter, resp *Response) {
	hdr := w.Header()
	for _, h := range resp.Headers {
		hdr.Add(h.Name, h.Value)
	}
	if resp.Replayed {
		hdr.Set(HeaderReplayed, "true")
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// WriteError writes a coordinator error as JSON {"error": ..., "kind": ...}.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	kind := KindOf(err).String()
	if status == http.StatusTooEarly {
		w.Header().Set("Retry-After", "1")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": kind})
}

// recorder buffers a handler's response.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

// result hands the captured response to the coordinator. 503 answers are not recorded, the
// handler signals a transient condition and the client is expected to retry with the same token.
func (r *recorder) result() (*Response, error) {
	resp := r.response()
	if resp.Status == http.StatusServiceUnavailable {
		return nil, NoCache(errTransientResponse)
	}
	return resp, nil
}

func (r *recorder) response() *Response {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		Status:  status,
		Headers: HeadersFromHTTP(r.header),
		Body:    r.body.Bytes(),
	}
}
