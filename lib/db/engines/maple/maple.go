package maple

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/engines/maple/internal"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum          = "MAPLEDB\x00"          // File format identifier
	mapleVersion      = 4                      // Database version (4 = wall clock ttl)
	defaultGCInterval = 500 * time.Millisecond // Default interval between GC runs
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory database with sharded data
type mapleImpl struct {
	mu        sync.RWMutex      // guards shards against Load swapping them out
	numShards int               // Number of shards
	seed      uint64            // Seed for the shard hash
	shards    []*internal.Shard // Array of shards

	// garbage collection
	gcInterval time.Duration
	now        func() int64
	stop       chan struct{}
	closed     atomic.Bool
	gcDone     sync.WaitGroup
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards  int           // Number of shards (0 = number of CPUs)
	GCInterval time.Duration // Time between GC runs (0 = use default)

	// Now is the clock used by the garbage collector to drop expired entries.
	// Reads and writes never use it, they get the time from the caller.
	Now func() int64
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:  runtime.NumCPU(),
		GCInterval: defaultGCInterval,
		Now:        func() int64 { return time.Now().UnixNano() },
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	if opts.NumShards <= 0 {
		opts.NumShards = defaults.NumShards
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = defaults.GCInterval
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	newDB := &mapleImpl{
		numShards:  opts.NumShards,
		seed:       generateSeed(),
		shards:     newShards(opts.NumShards),
		gcInterval: opts.GCInterval,
		now:        opts.Now,
		stop:       make(chan struct{}),
	}

	newDB.gcDone.Add(1)
	go newDB.garbageCollector()

	return newDB
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// generateSeed creates a random seed for the shard distribution
func generateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (maple *mapleImpl) shard(key string) *internal.Shard {
	return internal.GetShard(key, maple.seed, maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry without expiration.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, now int64) {
	maple.SetE(key, value, now, 0)
}

// SetE inserts or updates an entry that expires ttl nanoseconds after now.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetE(key string, value []byte, now int64, ttl int64) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	maple.shard(key).Data.Store(key, internal.Entry{
		Value:    copyBytes(value),
		ExpireAt: internal.ExpireAt(now, ttl),
	})
}

// SetEIfUnset inserts an entry only if the key has no live entry.
// The check and the write happen inside one Compute call on the shard map, so concurrent
// callers for the same key observe exactly one winner.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetEIfUnset(key string, value []byte, now int64, ttl int64) bool {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	var stored bool
	maple.shard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && old.Live(now) {
			return old, false
		}
		stored = true
		return internal.Entry{
			Value:    copyBytes(value),
			ExpireAt: internal.ExpireAt(now, ttl),
		}, false
	})
	return stored
}

// Delete removes an entry with the specified key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, _ int64) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	maple.shard(key).Data.Delete(key)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string, now int64) ([]byte, bool) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	e, ok := maple.shard(key).Data.Load(key)
	if !ok || !e.Live(now) {
		return nil, false
	}
	return copyBytes(e.Value), true
}

// Has checks if a live entry exists for the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string, now int64) bool {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	e, ok := maple.shard(key).Data.Load(key)
	return ok && e.Live(now)
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// garbageCollector periodically removes entries whose ttl has passed.
// Expired entries are already invisible to readers, so the collector only reclaims memory
// and its timing never changes observable results.
func (maple *mapleImpl) garbageCollector() {
	defer maple.gcDone.Done()

	ticker := time.NewTicker(maple.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-maple.stop:
			return
		case <-ticker.C:
			maple.collect(maple.now())
		}
	}
}

// collect removes every entry that is expired at now
func (maple *mapleImpl) collect(now int64) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	for _, shard := range maple.shards {
		var expired []string
		shard.Data.Range(func(key string, e internal.Entry) bool {
			if !e.Live(now) {
				expired = append(expired, key)
			}
			return true
		})

		// re-check under Compute, the key may have been rewritten since the scan
		for _, key := range expired {
			shard.Data.Compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
				return e, !loaded || !e.Live(now)
			})
		}
	}
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// Save writes all entries (including expired ones not yet collected) to the writer.
// The snapshot is fuzzy: writes that happen concurrently may or may not be included.
//
// Format: magic | version u8 | count u64 | { keyLen u32 | key | expireAt i64 | valueLen u32 | value }*
func (maple *mapleImpl) Save(w io.Writer) error {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	type item struct {
		key   string
		entry internal.Entry
	}

	var items []item
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, e internal.Entry) bool {
			items = append(items, item{key: key, entry: e})
			return true
		})
	}

	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(items))); err != nil {
		return err
	}

	for _, it := range items {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(it.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(it.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, it.entry.ExpireAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(it.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(it.entry.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the database content with the snapshot read from r.
// On error the previous content is kept.
//
// Thread-safety: Load blocks all other operations while the new shards are swapped in.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	shards := newShards(maple.numShards)
	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var expireAt int64
		if err := binary.Read(br, binary.LittleEndian, &expireAt); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		k := string(key)
		internal.GetShard(k, maple.seed, shards).Data.Store(k, internal.Entry{
			Value:    value,
			ExpireAt: expireAt,
		})
	}

	maple.mu.Lock()
	maple.shards = shards
	maple.mu.Unlock()

	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database.
// Expired entries pending collection are counted.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	info := db.DatabaseInfo{
		DbType: db.ImplMaple,
	}
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, e internal.Entry) bool {
			info.Keys++
			info.SizeBytes += len(key) + len(e.Value) + 8
			return true
		})
	}
	for f := db.FeatureSet; f <= db.FeatureLoad; f <<= 1 {
		if maple.SupportsFeature(f) {
			info.SupportedFeatures = append(info.SupportedFeatures, f)
		}
	}
	return info
}

// SupportsFeature reports whether all given features are supported. Maple supports all of them.
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	const all = db.FeatureSet | db.FeatureSetE | db.FeatureSetEIfUnset | db.FeatureGet |
		db.FeatureDelete | db.FeatureHas | db.FeatureSave | db.FeatureLoad
	return feature&all == feature
}

// Close stops the garbage collector. Calling Close more than once is a no-op.
func (maple *mapleImpl) Close() error {
	if maple.closed.CompareAndSwap(false, true) {
		close(maple.stop)
		maple.gcDone.Wait()
	}
	return nil
}
