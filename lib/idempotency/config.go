package idempotency

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the tunables of the coordinator.
type Config struct {
	// LockTTL bounds how long a crashed executor can block its token.
	LockTTL time.Duration `validate:"gt=0"`
	// ResultTTL is the idempotency window: how long outcomes are replayed.
	ResultTTL time.Duration `validate:"gt=0"`
	// MaxWaitAttempts is the number of cache polls a request makes while another request holds the lock.
	MaxWaitAttempts int `validate:"gte=0"`
	// PollInterval is the pause between two polls.
	PollInterval time.Duration `validate:"gt=0"`
	// ExecutionTimeout is the deadline put on the operation's context. It must be shorter than
	// LockTTL so a well-behaved operation finishes while it still holds the lock.
	// 0 means 4/5 of LockTTL.
	ExecutionTimeout time.Duration `validate:"gte=0"`
	// Strict rejects a reused token with a different payload (409). Lenient mode replays the
	// stored outcome and logs the mismatch.
	Strict bool
	// KeyPrefix namespaces all keys written to the store.
	KeyPrefix string `validate:"required,excludesall=/"`
}

// DefaultConfig returns the default configuration (strict mode).
func DefaultConfig() Config {
	return Config{
		LockTTL:         time.Minute,
		ResultTTL:       10 * time.Minute,
		MaxWaitAttempts: 50,
		PollInterval:    100 * time.Millisecond,
		Strict:          true,
		KeyPrefix:       "idem",
	}
}

var validate = validator.New()

// Normalize fills derived defaults.
func (c Config) Normalize() Config {
	if c.ExecutionTimeout == 0 {
		c.ExecutionTimeout = c.LockTTL * 4 / 5
	}
	return c
}

// Validate checks the configuration after Normalize.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid idempotency config: %w", err)
	}
	if c.ExecutionTimeout >= c.LockTTL {
		return fmt.Errorf("invalid idempotency config: execution timeout %s must be shorter than lock ttl %s",
			c.ExecutionTimeout, c.LockTTL)
	}
	return nil
}

// WaitBudget is the longest time a request waits for a concurrent request with the same token.
func (c Config) WaitBudget() time.Duration {
	return time.Duration(c.MaxWaitAttempts) * c.PollInterval
}

// String returns a human-readable representation of the configuration
func (c Config) String() string {
	var sb strings.Builder
	sb.WriteString("Idempotency Config:\n")
	fmt.Fprintf(&sb, "  %-20s %s\n", "Lock TTL:", c.LockTTL)
	fmt.Fprintf(&sb, "  %-20s %s\n", "Result TTL:", c.ResultTTL)
	fmt.Fprintf(&sb, "  %-20s %s\n", "Execution Timeout:", c.ExecutionTimeout)
	fmt.Fprintf(&sb, "  %-20s %d x %s\n", "Wait:", c.MaxWaitAttempts, c.PollInterval)
	fmt.Fprintf(&sb, "  %-20s %t\n", "Strict:", c.Strict)
	fmt.Fprintf(&sb, "  %-20s %s\n", "Key Prefix:", c.KeyPrefix)
	return sb.String()
}
