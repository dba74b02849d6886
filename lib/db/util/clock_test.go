package util

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}

	c.Advance(1500 * time.Millisecond)
	if got := c.Now().Sub(start); got != 1500*time.Millisecond {
		t.Errorf("expected clock to advance 1.5s, got %v", got)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("expected Set to move the clock back to %v, got %v", start, c.Now())
	}
}

func TestManualClockZeroStart(t *testing.T) {
	c := NewManualClock(time.Time{})
	if c.Now().UnixNano() <= 0 {
		t.Errorf("expected positive unix nanos for zero start, got %d", c.Now().UnixNano())
	}
}

func TestHashStringStable(t *testing.T) {
	if HashString("node-1", 0) != HashString("node-1", 0) {
		t.Fatal("hash is not deterministic")
	}
	if HashString("node-1", 0) == HashString("node-2", 0) {
		t.Error("expected different hashes for different names")
	}
	if HashString("node-1", 0) == HashString("node-1", 1) {
		t.Error("expected seed to change the hash")
	}
}

func TestBucketInRange(t *testing.T) {
	for _, key := range []string{"", "a", "tenant/key", "idem:acme:token"} {
		for _, n := range []int{1, 3, 64} {
			b := Bucket(key, 7, n)
			if b < 0 || b >= n {
				t.Errorf("Bucket(%q, 7, %d) = %d out of range", key, n, b)
			}
		}
	}
}
