package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsWithinCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0.001) {
			t.Fatalf("call %d denied within capacity", i+1)
		}
	}
	if l.Allow("k", 3, 0.001) {
		t.Fatalf("fourth call allowed past capacity")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 100) {
		t.Fatalf("first call denied")
	}
	if l.Allow("k", 1, 100) {
		t.Fatalf("second immediate call allowed")
	}
	time.Sleep(50 * time.Millisecond)
	if !l.Allow("k", 1, 100) {
		t.Fatalf("call denied after refill window")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.001) {
		t.Fatalf("key a denied")
	}
	if l.Allow("a", 1, 0.001) {
		t.Fatalf("key a allowed past capacity")
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatalf("key b should have its own bucket")
	}
}
