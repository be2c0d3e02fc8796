package security

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterStore_AllowsWithinBurst(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !s.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}

	if s.Allow("10.0.0.1") {
		t.Error("request beyond burst should be denied")
	}
}

func TestLimiterStore_PerClientIsolation(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if s.Allow("10.0.0.1") {
		t.Error("first client should now be limited")
	}
	if !s.Allow("10.0.0.2") {
		t.Error("second client should have its own bucket")
	}
}

func TestLimiterStore_EmptyIPBucketed(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("") {
		t.Fatal("empty ip should fall into the shared unknown bucket")
	}
	if s.Allow("  ") {
		t.Error("whitespace ip should share the unknown bucket and be limited")
	}
}
