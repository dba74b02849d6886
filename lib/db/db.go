package db

import (
	"io"
	"strings"
)

// Implementation names a storage engine in DatabaseInfo.
type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplRedis Implementation = "redis"
)

// Feature is a bit set of operations an engine supports.
type Feature uint64

const (
	FeatureSet Feature = 1 << iota
	FeatureSetE
	FeatureSetEIfUnset
	FeatureGet
	FeatureDelete
	FeatureHas
	FeatureSave
	FeatureLoad
)

var featureNames = []string{"Set", "SetE", "SetEIfUnset", "Get", "Delete", "Has", "Save", "Load"}

// String lists the names of all bits set in f, joined by "|".
func (f Feature) String() string {
	var names []string
	for i, name := range featureNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 || f>>len(featureNames) != 0 {
		return "Unknown"
	}
	return strings.Join(names, "|")
}

// DatabaseInfo describes an engine instance.
type DatabaseInfo struct {
	Keys              int            `json:"keys"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
}

// KVDB is a key-value engine with expiring entries.
//
// Engines never read a clock. Every call gets now (unix nanos) from the caller and ttl is a
// duration in nanoseconds, 0 meaning no expiry. Raft replicas apply a command with the
// time recorded by the proposer and so reach the same state.
type KVDB interface {
	// Set writes an entry that never expires.
	Set(key string, value []byte, now int64)

	// SetE writes an entry that expires ttl after now.
	SetE(key string, value []byte, now int64, ttl int64)

	// SetEIfUnset writes the entry only if the key has no live entry, expired entries count
	// as absent. It reports whether the value was written.
	SetEIfUnset(key string, value []byte, now int64, ttl int64) (stored bool)

	// Delete removes the entry, missing keys are ignored.
	Delete(key string, now int64)

	// Get returns a copy of the live value for key.
	Get(key string, now int64) (value []byte, loaded bool)

	// Has reports whether key has a live entry.
	Has(key string, now int64) (loaded bool)

	// Save writes a snapshot of all entries to w.
	Save(w io.Writer) (err error)

	// Load replaces all entries with a snapshot written by Save.
	Load(r io.Reader) (err error)

	// SupportsFeature reports whether every bit in feature is supported.
	SupportsFeature(feature Feature) (ok bool)

	GetInfo() (info DatabaseInfo)

	// Close stops background work.
	Close() (err error)
}
