package idempotency

import (
	"context"
	"time"

	"github.com/ValentinKolb/idemkv/lib/store"
)

// ResultCache persists and retrieves idempotency records.
// Records are written once under the lock and expire by ttl; there is no update or delete.
type ResultCache struct {
	store store.IStore
	keys  keyspace
}

// NewResultCache creates a result cache writing under prefix.
func NewResultCache(s store.IStore, prefix string) *ResultCache {
	return &ResultCache{store: s, keys: keyspace{prefix: prefix}}
}

// Lookup returns the record for (tenant, token) if one exists.
func (c *ResultCache) Lookup(ctx context.Context, tenant, token string) (*Record, bool, error) {
	data, found, err := c.store.Get(ctx, c.keys.record(tenant, token))
	if err != nil || !found {
		return nil, false, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Store writes the record for (tenant, token) with the given ttl.
func (c *ResultCache) Store(ctx context.Context, tenant, token string, rec *Record, ttl time.Duration) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return c.store.SetE(ctx, c.keys.record(tenant, token), data, ttl)
}
