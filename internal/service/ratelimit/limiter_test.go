package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstUpToCapacity(t *testing.T) {
	l := New(3, 0.001) // effectively no refill within the test

	for i := 0; i < 3; i++ {
		if !l.Allow("ep") {
			t.Fatalf("token %d denied within capacity", i)
		}
	}
	if l.Allow("ep") {
		t.Fatalf("expected denial once the bucket is empty")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New(1, 0.001)

	if !l.Allow("a") {
		t.Fatalf("first token for a denied")
	}
	if l.Allow("a") {
		t.Fatalf("a should be exhausted")
	}
	if !l.Allow("b") {
		t.Fatalf("b must have its own bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New(1, 100) // one token every 10ms

	if !l.Allow("ep") {
		t.Fatalf("initial token denied")
	}
	if l.Allow("ep") {
		t.Fatalf("bucket should be empty")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Allow("ep") {
		t.Fatalf("expected refill after waiting")
	}
}
