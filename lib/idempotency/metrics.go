package idempotency

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// outcomes of a coordinated request
const (
	outcomeExecuted         = "executed"
	outcomeReplayed         = "replayed"
	outcomeFailed           = "failed"
	outcomeConflict         = "conflict"
	outcomeWaitExhausted    = "wait_exhausted"
	outcomeStoreUnavailable = "store_unavailable"
	outcomePassthrough      = "passthrough"
	outcomeInvalid          = "invalid"
)

var (
	leaseOverruns     = metrics.NewCounter("idempotency_lease_overruns_total")
	executionDuration = metrics.NewHistogram("idempotency_execution_duration_seconds")
	waitPolls         = metrics.NewCounter("idempotency_wait_polls_total")
)

func observeOutcome(outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`idempotency_requests_total{outcome=%q}`, outcome)).Inc()
}

// OutcomeCount returns the number of requests that ended with outcome. Used by tests and the CLI.
func OutcomeCount(outcome string) uint64 {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`idempotency_requests_total{outcome=%q}`, outcome)).Get()
}

// LeaseOverruns returns how often an execution outlived its lock.
func LeaseOverruns() uint64 {
	return leaseOverruns.Get()
}
