package security

import (
	"fmt"
	"testing"
)

func TestRateLimiter_Allow(t *testing.T) {
	// A negligible refill rate makes the burst the effective budget.
	rl := NewRateLimiter(0.0001, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request beyond burst was allowed")
	}

	// Budgets are per identifier.
	if !rl.Allow("10.0.0.2") {
		t.Error("fresh identifier was denied")
	}
}

func TestRateLimiter_Eviction(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()
	rl.maxEntries = 3

	for i := 0; i < 5; i++ {
		rl.Allow(fmt.Sprintf("10.0.0.%d", i))
	}

	if got := rl.Len(); got != 3 {
		t.Errorf("tracked identifiers = %d, want 3", got)
	}

	// The oldest entries were evicted; a returning identifier gets a fresh
	// bucket instead of being denied outright.
	if !rl.Allow("10.0.0.0") {
		t.Error("evicted identifier was denied on return")
	}
}

func TestRateLimiter_Stop(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop() // idempotent
}
