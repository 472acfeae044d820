package security

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxLimiterEntries bounds the number of tracked identifiers
	DefaultMaxLimiterEntries = 10000

	// limiterCleanupInterval is how often stale limiters are evicted
	limiterCleanupInterval = 5 * time.Minute

	// limiterIdleTimeout is how long an identifier may be idle before eviction
	limiterIdleTimeout = 15 * time.Minute
)

// RateLimiter applies a per-identifier token bucket (identifiers are
// typically client IPs). Entries are kept in an LRU so memory stays bounded
// under identifier churn; the least recently used entry is evicted when the
// limit is reached.
type RateLimiter struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	rps        rate.Limit
	burst      int
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

type limiterEntry struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing rps requests per second
// with the given burst per identifier.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		rps:        rate.Limit(rps),
		burst:      burst,
		maxEntries: DefaultMaxLimiterEntries,
		stop:       make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether the identifier may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, ok := rl.entries[key]; ok {
		entry := elem.Value.(*limiterEntry)
		entry.lastSeen = time.Now()
		rl.lru.MoveToFront(elem)
		return entry.limiter.Allow()
	}

	if len(rl.entries) >= rl.maxEntries {
		rl.evictOldestLocked()
	}

	entry := &limiterEntry{
		key:      key,
		limiter:  rate.NewLimiter(rl.rps, rl.burst),
		lastSeen: time.Now(),
	}
	rl.entries[key] = rl.lru.PushFront(entry)

	return entry.limiter.Allow()
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) evictOldestLocked() {
	oldest := rl.lru.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*limiterEntry)
	delete(rl.entries, entry.key)
	rl.lru.Remove(oldest)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) removeIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-limiterIdleTimeout)
	for elem := rl.lru.Back(); elem != nil; {
		entry := elem.Value.(*limiterEntry)
		if entry.lastSeen.After(cutoff) {
			break
		}
		prev := elem.Prev()
		delete(rl.entries, entry.key)
		rl.lru.Remove(elem)
		elem = prev
	}
}
