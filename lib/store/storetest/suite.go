// Package storetest holds the conformance suite every store.IStore implementation runs.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/store"
)

// Factory creates a fresh store and a function that moves the store's notion of time forward.
type Factory func(t *testing.T) (s store.IStore, advance func(time.Duration))

// RunStoreTests runs the conformance suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("SetGet", func(t *testing.T) {
			s, _ := factory(t)
			testSetGet(t, s)
		})
		t.Run("TTL", func(t *testing.T) {
			s, advance := factory(t)
			testTTL(t, s, advance)
		})
		t.Run("SetEIfUnset", func(t *testing.T) {
			s, advance := factory(t)
			testSetEIfUnset(t, s, advance)
		})
		t.Run("SetEIfUnsetRace", func(t *testing.T) {
			s, _ := factory(t)
			testSetEIfUnsetRace(t, s)
		})
		t.Run("Delete", func(t *testing.T) {
			s, _ := factory(t)
			testDelete(t, s)
		})
	})
}

func testSetGet(t *testing.T, s store.IStore) {
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(v, []byte("v1")) {
		t.Fatalf("Get: expected v1, got %q ok=%v err=%v", v, ok, err)
	}

	if _, ok, err = s.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Get(missing): expected not found, got ok=%v err=%v", ok, err)
	}

	has, err := s.Has(ctx, "k")
	if err != nil || !has {
		t.Errorf("Has: expected true, got %v err=%v", has, err)
	}
}

func testTTL(t *testing.T, s store.IStore, advance func(time.Duration)) {
	ctx := context.Background()

	if err := s.SetE(ctx, "ttl", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("SetE failed: %v", err)
	}

	advance(time.Second)
	if _, ok, _ := s.Get(ctx, "ttl"); !ok {
		t.Errorf("expected key to be live before its ttl")
	}

	advance(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "ttl"); ok {
		t.Errorf("expected key to be gone after its ttl")
	}
	if has, _ := s.Has(ctx, "ttl"); has {
		t.Errorf("expected Has to be false after the ttl")
	}
}

func testSetEIfUnset(t *testing.T, s store.IStore, advance func(time.Duration)) {
	ctx := context.Background()

	stored, err := s.SetEIfUnset(ctx, "lock", []byte("a"), time.Second)
	if err != nil || !stored {
		t.Fatalf("first SetEIfUnset: expected stored, got %v err=%v", stored, err)
	}

	stored, err = s.SetEIfUnset(ctx, "lock", []byte("b"), time.Second)
	if err != nil || stored {
		t.Fatalf("second SetEIfUnset: expected rejected, got %v err=%v", stored, err)
	}
	if v, _, _ := s.Get(ctx, "lock"); string(v) != "a" {
		t.Errorf("expected value a, got %q", v)
	}

	advance(2 * time.Second)
	stored, err = s.SetEIfUnset(ctx, "lock", []byte("c"), time.Second)
	if err != nil || !stored {
		t.Errorf("SetEIfUnset after expiry: expected stored, got %v err=%v", stored, err)
	}
}

func testSetEIfUnsetRace(t *testing.T, s store.IStore) {
	ctx := context.Background()

	const workers = 32
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
			stored, err := s.SetEIfUnset(ctx, "race", []byte(fmt.Sprint(i)), time.Minute)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			if stored {
				winners.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("expected exactly one winner, got %d", n)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	ctx := context.Background()

	if err := s.Set(ctx, "del", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete(ctx, "del"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "del"); ok {
		t.Errorf("expected key to be deleted")
	}
	if err := s.Delete(ctx, "del"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}
