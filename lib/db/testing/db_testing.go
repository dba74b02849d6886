package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/idemkv/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// base time for all tests, any positive value works
const t0 int64 = 1_700_000_000_000_000_000

// RunKVDBTests runs the conformance suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("KeyExpiry", func(t *testing.T) {
			testKeyExpiry(t, factory())
		})

		t.Run("SetEIfUnset", func(t *testing.T) {
			testSetEIfUnset(t, factory())
		})

		t.Run("SetEIfUnsetRace", func(t *testing.T) {
			testSetEIfUnsetRace(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, t0)

	result, exists := database.Get(testKey, t0)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, t0)

	result, _ = database.Get(testKey, t0)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = database.Get("nonexistent-key", t0); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := database.Get(testKey, t0)
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get(testKey, t0)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable")
	database.Set("copy-in", input, t0)
	input[0] = 'X'
	if stored, _ := database.Get("copy-in", t0); !bytes.Equal(stored, []byte("mutable")) {
		t.Errorf("Set should copy the value, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureGet)

	database.Set("delete-key", []byte("value"), t0)
	database.Delete("delete-key", t0)

	if _, exists := database.Get("delete-key", t0); exists {
		t.Errorf("Expected key to be gone after Delete")
	}

	// deleting twice and deleting unknown keys must not panic
	database.Delete("delete-key", t0)
	database.Delete("never-existed", t0)
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetE|db.FeatureHas)

	database.SetE("has-key", []byte("value"), t0, 100)

	if !database.Has("has-key", t0) {
		t.Errorf("Expected Has to be true for a live key")
	}
	if database.Has("has-key", t0+100) {
		t.Errorf("Expected Has to be false once the ttl passed")
	}
	if database.Has("missing", t0) {
		t.Errorf("Expected Has to be false for a missing key")
	}
}

func testKeyExpiry(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetE|db.FeatureGet)

	tests := []struct {
		name     string
		ttl      int64
		readAt   int64
		expected bool
	}{
		{"before expiry", 1000, t0 + 999, true},
		{"at expiry", 1000, t0 + 1000, false},
		{"after expiry", 1000, t0 + 5000, false},
		{"zero ttl never expires", 0, t0 + 1<<40, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := fmt.Sprintf("expiry-%d", i)
			database.SetE(key, []byte("v"), t0, tt.ttl)
			if _, ok := database.Get(key, tt.readAt); ok != tt.expected {
				t.Errorf("Get(%s) at +%d: expected %v, got %v", key, tt.readAt-t0, tt.expected, ok)
			}
		})
	}

	// overwriting with SetE resets the ttl
	database.SetE("reset", []byte("a"), t0, 100)
	database.SetE("reset", []byte("b"), t0+50, 100)
	if v, ok := database.Get("reset", t0+120); !ok || string(v) != "b" {
		t.Errorf("Expected overwritten entry to live until +150, got %q %v", v, ok)
	}

	// Set removes a previous ttl
	database.SetE("persist", []byte("a"), t0, 100)
	database.Set("persist", []byte("b"), t0)
	if _, ok := database.Get("persist", t0+1000); !ok {
		t.Errorf("Expected Set to clear the ttl")
	}
}

func testSetEIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetEIfUnset|db.FeatureGet)

	if !database.SetEIfUnset("lock", []byte("owner-1"), t0, 100) {
		t.Fatalf("Expected first SetEIfUnset to store")
	}
	if database.SetEIfUnset("lock", []byte("owner-2"), t0+10, 100) {
		t.Errorf("Expected second SetEIfUnset on a live key to be rejected")
	}
	if v, _ := database.Get("lock", t0+10); string(v) != "owner-1" {
		t.Errorf("Expected value to stay owner-1, got %s", v)
	}

	// once expired, the key can be taken over
	if !database.SetEIfUnset("lock", []byte("owner-3"), t0+100, 100) {
		t.Errorf("Expected SetEIfUnset to succeed on an expired key")
	}
	if v, _ := database.Get("lock", t0+150); string(v) != "owner-3" {
		t.Errorf("Expected value owner-3 after takeover, got %s", v)
	}

	database.Delete("lock", t0+150)
	if !database.SetEIfUnset("lock", []byte("owner-4"), t0+150, 0) {
		t.Errorf("Expected SetEIfUnset to succeed after Delete")
	}
}

func testSetEIfUnsetRace(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetEIfUnset)

	const workers = 64
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			if database.SetEIfUnset("contended", []byte(fmt.Sprintf("w-%d", i)), t0, 1000) {
				winners.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("Expected exactly one winner, got %d", n)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()

	requireFeature(t, source, db.FeatureSave|db.FeatureLoad|db.FeatureSetE)

	for i := 0; i < 100; i++ {
		source.Set(fmt.Sprintf("plain-%d", i), []byte(fmt.Sprintf("value-%d", i)), t0)
	}
	source.SetE("ttl", []byte("expiring"), t0, 1000)
	source.Set("empty", []byte{}, t0)

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := factory()
	defer target.Close()

	target.Set("stale", []byte("removed by load"), t0)
	if err := target.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		v, ok := target.Get(fmt.Sprintf("plain-%d", i), t0)
		if !ok || string(v) != fmt.Sprintf("value-%d", i) {
			t.Fatalf("Expected plain-%d to survive Save/Load, got %q %v", i, v, ok)
		}
	}
	if _, ok := target.Get("ttl", t0+999); !ok {
		t.Errorf("Expected ttl entry to be live before its expiry")
	}
	if _, ok := target.Get("ttl", t0+1000); ok {
		t.Errorf("Expected ttl entry to keep its expiration after Load")
	}
	if v, ok := target.Get("empty", t0); !ok || len(v) != 0 {
		t.Errorf("Expected empty value to survive, got %q %v", v, ok)
	}
	if _, ok := target.Get("stale", t0); ok {
		t.Errorf("Expected Load to replace the existing content")
	}

	if err := target.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected Load of garbage to fail")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	tests := []struct {
		name  string
		key   string
		value []byte
	}{
		{"empty key", "", []byte("v")},
		{"nil value", "nil-value", nil},
		{"unicode key", "schlüssel/日本", []byte("v")},
		{"binary value", "binary", []byte{0, 1, 2, 255}},
		{"large value", "large", bytes.Repeat([]byte("x"), 1<<20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database.Set(tt.key, tt.value, t0)
			v, ok := database.Get(tt.key, t0)
			if !ok {
				t.Fatalf("Expected key %q to exist", tt.key)
			}
			if !bytes.Equal(v, tt.value) {
				t.Errorf("Value mismatch for key %q", tt.key)
			}
		})
	}
}
