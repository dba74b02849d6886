package idempotency

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Header is a single response header. Headers keep their order.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header list.
type Headers []Header

// Get returns the first value for name (case-insensitive).
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Add appends a header.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// HeadersFromHTTP converts an http.Header. Names are sorted since http.Header has no order;
// multiple values keep their order.
func HeadersFromHTTP(hdr http.Header) Headers {
	names := make([]string, 0, len(hdr))
	for name := range hdr {
		names = append(names, name)
	}
	sort.Strings(names)

	var out Headers
	for _, name := range names {
		for _, v := range hdr[name] {
			out.Add(name, v)
		}
	}
	return out
}

// Response is the outcome of an operation as seen by the caller.
type Response struct {
	Status   int
	Headers  Headers
	Body     []byte
	Replayed bool // true if served from the result cache
}

// Record is the persisted outcome of one executed request.
type Record struct {
	Fingerprint string        `json:"fingerprint"`
	Status      int           `json:"status"`
	Headers     Headers       `json:"headers,omitempty"`
	Body        []byte        `json:"body,omitempty"`
	Failed      bool          `json:"failed,omitempty"`
	Error       string        `json:"error,omitempty"`
	StoredAt    time.Time     `json:"stored_at"`
	TTL         time.Duration `json:"ttl"`
}

func newRecord(fp string, resp *Response, now time.Time, ttl time.Duration) *Record {
	return &Record{
		Fingerprint: fp,
		Status:      resp.Status,
		Headers:     resp.Headers,
		Body:        resp.Body,
		StoredAt:    now,
		TTL:         ttl,
	}
}

// Response builds the replayed response of the record.
func (r *Record) Response() *Response {
	headers := make(Headers, len(r.Headers))
	copy(headers, r.Headers)
	return &Response{
		Status:   r.Status,
		Headers:  headers,
		Body:     r.Body,
		Replayed: true,
	}
}

func encodeRecord(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &r, nil
}
