package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestNew_Invalid(t *testing.T) {
	if New(0, 1, 0) != nil {
		t.Error("expected nil limiter for zero rps")
	}
	if New(1, 0, 0) != nil {
		t.Error("expected nil limiter for zero burst")
	}

	var l *MapLimiter
	if !l.Allow("1.2.3.4", time.Now()) {
		t.Error("nil limiter must allow")
	}
}

func TestAllow_Burst(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	if !l.Allow("a", now) || !l.Allow("a", now) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("a", now) {
		t.Error("third request in the same instant should be limited")
	}
	if !l.Allow("b", now) {
		t.Error("other keys have their own bucket")
	}
	if !l.Allow("a", now.Add(time.Second)) {
		t.Error("bucket should refill after one second")
	}
	if !l.Allow("  ", now) {
		t.Error("blank keys are not limited")
	}
}

func TestAllow_EvictsIdle(t *testing.T) {
	l := New(100, 100, time.Minute)
	start := time.Unix(1_700_000_000, 0)

	l.Allow("idle", start)
	later := start.Add(2 * time.Minute)
	for i := 0; i < sweepEvery; i++ {
		l.Allow(fmt.Sprintf("k%d", i%4), later)
	}

	if l.Len() != 4 {
		t.Errorf("Len = %d, want 4 after idle eviction", l.Len())
	}
}
