package internal

import (
	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair with metadata)
// --------------------------------------------------------------------------

// Entry stores a value with its absolute expiration time
type Entry struct {
	Value    []byte // stored data
	ExpireAt int64  // unix nanos after which the entry is gone (0 = never)
}

// Live reports whether the entry is visible at the given time
func (e Entry) Live(now int64) bool {
	return e.ExpireAt == 0 || now < e.ExpireAt
}

// ExpireAt converts a relative ttl into an absolute expiration time (0 = never)
func ExpireAt(now, ttl int64) int64 {
	if ttl <= 0 {
		return 0
	}
	return now + ttl
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[string, Entry]
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard returns the shard responsible for the key
func GetShard(key string, seed uint64, shards []*Shard) *Shard {
	return shards[util.Bucket(key, seed, len(shards))]
}
