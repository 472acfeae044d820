package security

import "time"

// DefaultClockSkewGracePeriod is the default grace period applied to
// expiry checks to absorb time synchronization drift between systems.
const DefaultClockSkewGracePeriod = 5 * time.Second

// Clock is an injectable time source. Production code uses SystemClock;
// tests substitute a controllable implementation so TTL behavior can be
// verified without sleeping.
type Clock interface {
	// Now returns the current time
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// IsExpired reports whether expiresAt has passed relative to the clock,
// with the default clock-skew grace period applied.
func IsExpired(clock Clock, expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(clock, expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod reports whether expiresAt has passed relative to
// the clock, treating times within the grace period as still valid.
func IsExpiredWithGracePeriod(clock Clock, expiresAt time.Time, grace time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return clock.Now().After(expiresAt.Add(grace))
}
