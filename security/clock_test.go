package security

import (
	"testing"
	"time"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"future", now.Add(time.Hour), false},
		{"zero time never expires", time.Time{}, false},
		{"just past but within grace", now.Add(-2 * time.Second), false},
		{"at the grace boundary", now.Add(-DefaultClockSkewGracePeriod), false},
		{"past the grace period", now.Add(-DefaultClockSkewGracePeriod - time.Second), true},
		{"long past", now.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(clock, tt.expiresAt); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsExpiredWithGracePeriod(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{now: now}

	// Zero grace makes the check strict.
	if IsExpiredWithGracePeriod(clock, now.Add(time.Nanosecond), 0) {
		t.Error("future expiry reported as expired")
	}
	if !IsExpiredWithGracePeriod(clock, now.Add(-time.Nanosecond), 0) {
		t.Error("past expiry with zero grace reported as valid")
	}
}
