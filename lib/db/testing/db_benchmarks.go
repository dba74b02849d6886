package testing

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/idemkv/lib/db"
	"sync/atomic"
	"testing"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("SetEIfUnset(contended)", func(b *testing.B) {
			benchmarkSetEIfUnsetContended(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, database db.KVDB) {
	defer database.Close()
	value := []byte("benchmark-value")

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			database.SetE(fmt.Sprintf("key-%d", i), value, t0, 1_000_000)
		}
	})
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	defer database.Close()
	const keys = 10_000
	for i := 0; i < keys; i++ {
		database.Set(fmt.Sprintf("key-%d", i), []byte("benchmark-value"), t0)
	}

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			database.Get(fmt.Sprintf("key-%d", i%keys), t0)
		}
	})
}

// all goroutines race for a small set of lock keys, like an idempotency burst
func benchmarkSetEIfUnsetContended(b *testing.B, database db.KVDB) {
	defer database.Close()

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			database.SetEIfUnset(fmt.Sprintf("lock-%d", i%16), []byte("owner"), t0+i, 8)
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	source := factory()
	defer source.Close()
	for i := 0; i < 10_000; i++ {
		source.Set(fmt.Sprintf("key-%d", i), []byte("benchmark-value"), t0)
	}

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := source.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	snapshot := buf.Bytes()
	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(snapshot)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
