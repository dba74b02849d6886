package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/idemkv/lib/idempotency"
	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
)

// Token modes
const (
	ModeShared   = "shared"   // every request carries the same Idempotency-Key
	ModeDistinct = "distinct" // every request carries its own key, only the sku is shared
)

// percentiles reported for the latency histogram
var percentiles = []float64{0.5, 0.9, 0.99}

// Options configures a single probe run.
type Options struct {
	BaseURL    string
	Tenant     string
	Requests   int
	Mode       string
	SKU        string
	Name       string
	PriceCents int64
}

func (o Options) validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("base url must not be empty")
	}
	if o.Requests < 1 {
		return fmt.Errorf("requests must be at least 1, got %d", o.Requests)
	}
	if o.Mode != ModeShared && o.Mode != ModeDistinct {
		return fmt.Errorf("invalid mode %q (shared, distinct)", o.Mode)
	}
	if o.Tenant == "" || o.SKU == "" {
		return fmt.Errorf("tenant and sku must not be empty")
	}
	return nil
}

// Report summarizes the responses of one probe run.
type Report struct {
	Statuses       map[int]int    // response count per status code
	Replayed       int            // responses marked Idempotent-Replayed
	UpsertExisting int            // responses marked Upsert-Existing
	Failed         int            // requests without a response
	ProductIDs     map[string]int // distinct product ids seen in 2xx bodies
	Latency        gometrics.Histogram
}

// Consistent reports whether all successful responses refer to a single product.
func (r *Report) Consistent() bool {
	return len(r.ProductIDs) <= 1
}

type outcome struct {
	status   int
	replayed bool
	existing bool
	id       string
	took     time.Duration
	err      error
}

// Run fires opts.Requests concurrent create requests and collects the outcome.
func Run(ctx context.Context, client *http.Client, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	target, err := url.JoinPath(opts.BaseURL, "/v1/products")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	body, err := json.Marshal(map[string]any{
		"sku":         opts.SKU,
		"name":        opts.Name,
		"price_cents": opts.PriceCents,
	})
	if err != nil {
		return nil, err
	}

	sharedToken := uuid.NewString()
	results := make([]outcome, opts.Requests)

	// release all workers at once to maximise overlap
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < opts.Requests; i++ {
		token := sharedToken
		if opts.Mode == ModeDistinct {
			token = uuid.NewString()
		}
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			<-start
			results[i] = send(ctx, client, target, opts.Tenant, token, body)
		}(i, token)
	}
	close(start)
	wg.Wait()

	report := &Report{
		Statuses:   make(map[int]int),
		ProductIDs: make(map[string]int),
		Latency:    gometrics.NewHistogram(gometrics.NewUniformSample(opts.Requests)),
	}
	for _, o := range results {
		if o.err != nil {
			report.Failed++
			continue
		}
		report.Latency.Update(o.took.Microseconds())
		report.Statuses[o.status]++
		if o.replayed {
			report.Replayed++
		}
		if o.existing {
			report.UpsertExisting++
		}
		if o.id != "" {
			report.ProductIDs[o.id]++
		}
	}
	return report, nil
}

func send(ctx context.Context, client *http.Client, target, tenant, token string, body []byte) outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return outcome{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotency.HeaderTenant, tenant)
	req.Header.Set(idempotency.HeaderIdempotencyKey, token)

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return outcome{err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	took := time.Since(started)
	if err != nil {
		return outcome{err: err}
	}

	o := outcome{
		status:   resp.StatusCode,
		replayed: resp.Header.Get(idempotency.HeaderReplayed) == "true",
		existing: resp.Header.Get(naturalkey.UpsertExistingHeader) == "true",
		took:     took,
	}
	if resp.StatusCode/100 == 2 {
		var p struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(data, &p) == nil {
			o.id = p.ID
		}
	}
	return o
}

// Print writes a human readable summary of the report to w.
func (r *Report) Print(w io.Writer) {
	codes := make([]int, 0, len(r.Statuses))
	for code := range r.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Fprintln(w, "Responses:")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d %-22s %d\n", code, http.StatusText(code), r.Statuses[code])
	}
	if r.Failed > 0 {
		fmt.Fprintf(w, "  failed                     %d\n", r.Failed)
	}
	fmt.Fprintf(w, "Replayed:        %d\n", r.Replayed)
	fmt.Fprintf(w, "Upsert-Existing: %d\n", r.UpsertExisting)
	fmt.Fprintf(w, "Products:        %d (consistent: %t)\n", len(r.ProductIDs), r.Consistent())

	if r.Latency.Count() == 0 {
		return
	}
	ps := r.Latency.Percentiles(percentiles)
	fmt.Fprintf(w, "Latency (us):    min=%d max=%d mean=%.0f p50=%.0f p90=%.0f p99=%.0f\n",
		r.Latency.Min(), r.Latency.Max(), r.Latency.Mean(), ps[0], ps[1], ps[2])
}
