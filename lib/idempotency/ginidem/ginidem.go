// Package ginidem adapts the idempotency coordinator to gin.
package ginidem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ValentinKolb/idemkv/lib/idempotency"
	"github.com/gin-gonic/gin"
)

// errUnavailable marks a 503 from the chain, which stays retryable
var errUnavailable = errors.New("handler answered 503")

// Options is the type for the options of Middleware.
type Options func(*options)

type options struct {
	tokenHeader string
	tenant      func(c *gin.Context) string
}

// WithTokenHeader changes the header the token is read from.
func WithTokenHeader(name string) Options {
	return func(o *options) { o.tokenHeader = name }
}

// WithTenant changes how the tenant is determined.
func WithTenant(fn func(c *gin.Context) string) Options {
	return func(o *options) { o.tenant = fn }
}

// Middleware returns a gin handler that runs the rest of the chain at most once per token.
func Middleware(coord idempotency.ICoordinator, opts ...Options) gin.HandlerFunc {
	o := &options{
		tokenHeader: idempotency.HeaderIdempotencyKey,
		tenant: func(c *gin.Context) string {
			return c.GetHeader(idempotency.HeaderTenant)
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(c *gin.Context) {
		token := c.GetHeader(o.tokenHeader)
		if token == "" || !idempotency.IsMutating(c.Request.Method) {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, idempotency.MaxBodyBytes+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}
		if len(body) > idempotency.MaxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}

		req := idempotency.Request{
			Tenant: o.tenant(c),
			Token:  token,
			Method: c.Request.Method,
			Body:   body,
		}

		orig := c.Writer
		var cw *captureWriter
		resp, err := coord.Execute(c.Request.Context(), req, func(ctx context.Context) (*idempotency.Response, error) {
			cw = &captureWriter{ResponseWriter: orig, header: make(http.Header)}
			c.Writer = cw
			// restored on panic too, so recovery middleware writes to the client
			defer func() { c.Writer = orig }()
			c.Request = c.Request.WithContext(ctx)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			c.Next()
			if cw.Status() == http.StatusServiceUnavailable {
				return nil, idempotency.NoCache(errUnavailable)
			}
			return cw.response(), nil
		})

		switch {
		case resp != nil:
			idempotency.WriteResponse(c.Writer, resp)
		case cw != nil && errors.Is(err, errUnavailable):
			idempotency.WriteResponse(c.Writer, cw.response())
		default:
			idempotency.WriteError(c.Writer, err)
		}
		c.Abort()
	}
}

// captureWriter buffers what the downstream handlers write so it can be recorded.
type captureWriter struct {
	gin.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *captureWriter) Header() http.Header { return w.header }

func (w *captureWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *captureWriter) WriteHeaderNow() {}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *captureWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *captureWriter) Size() int { return w.body.Len() }

func (w *captureWriter) Written() bool { return w.status != 0 }

func (w *captureWriter) response() *idempotency.Response {
	return &idempotency.Response{
		Status:  w.Status(),
		Headers: idempotency.HeadersFromHTTP(w.header),
		Body:    bytes.Clone(w.body.Bytes()),
	}
}
