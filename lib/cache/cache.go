package cache

import (
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config holds the capacity and TTL of both cache tiers.
type Config struct {
	L1Capacity int           `json:"l1_capacity"`
	L1TTL      time.Duration `json:"l1_ttl"`
	L2Capacity int           `json:"l2_capacity"`
	L2TTL      time.Duration `json:"l2_ttl"`
}

// DefaultConfig returns the default tier tunables. These are not part of
// any contract; callers size the tiers to their workload.
func DefaultConfig() Config {
	return Config{
		L1Capacity: 16,
		L1TTL:      30 * time.Second,
		L2Capacity: 64,
		L2TTL:      5 * time.Minute,
	}
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats is a read-only snapshot of the cache counters. It must never
// influence cache behavior.
type Stats struct {
	HitsL1        uint64 `json:"hits_l1"`
	HitsL2        uint64 `json:"hits_l2"`
	Misses        uint64 `json:"misses"`
	Evictions     uint64 `json:"evictions"`
	Demotions     uint64 `json:"demotions"`
	Invalidations uint64 `json:"invalidations"`
	SizeL1        int    `json:"size_l1"`
	SizeL2        int    `json:"size_l2"`
}

// Hits returns the combined hit count of both tiers.
func (s Stats) Hits() uint64 {
	return s.HitsL1 + s.HitsL2
}

// HitRate returns hits/(hits+misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits() + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

// --------------------------------------------------------------------------
// Query Cache
// --------------------------------------------------------------------------

// cacheEntry holds one cached result id list with its timing metadata.
type cacheEntry struct {
	ids        []string
	insertedAt time.Time
	lastAccess time.Time
}

// QueryCache is a two-tier map from query fingerprint to result id list.
// L1 is small with a short TTL; L2 is larger with a longer TTL. Entries
// evicted from L1 for capacity are demoted into L2 instead of discarded,
// extending the life of moderately popular queries; L2 evictions discard
// permanently. A fingerprint holds at most one authoritative copy across
// both tiers at any time.
//
// Thread-safety: all methods are safe for concurrent use.
type QueryCache struct {
	mu   sync.Mutex
	conf Config
	l1   map[string]*cacheEntry
	l2   map[string]*cacheEntry

	hitsL1        uint64
	hitsL2        uint64
	misses        uint64
	evictions     uint64
	demotions     uint64
	invalidations uint64
}

// New creates a query cache with the given tier configuration.
// Non-positive capacities disable the affected tier.
func New(conf Config) *QueryCache {
	if conf.L1Capacity < 0 {
		conf.L1Capacity = 0
	}
	if conf.L2Capacity < 0 {
		conf.L2Capacity = 0
	}
	return &QueryCache{
		conf: conf,
		l1:   make(map[string]*cacheEntry),
		l2:   make(map[string]*cacheEntry),
	}
}

// Get returns the cached id list for a fingerprint if present and
// unexpired in either tier. A hit updates the entry's recency; an expired
// entry is dropped on access. The returned slice is a copy.
func (c *QueryCache) Get(fingerprint string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if e, ok := c.l1[fingerprint]; ok {
		if now.Sub(e.insertedAt) > c.conf.L1TTL {
			delete(c.l1, fingerprint)
		} else {
			e.lastAccess = now
			c.hitsL1++
			return copyIDs(e.ids), true
		}
	}

	if e, ok := c.l2[fingerprint]; ok {
		if now.Sub(e.insertedAt) > c.conf.L2TTL {
			delete(c.l2, fingerprint)
		} else {
			e.lastAccess = now
			c.hitsL2++
			return copyIDs(e.ids), true
		}
	}

	c.misses++
	return nil, false
}

// Put inserts a result id list into L1 under the fingerprint. Any L2 copy
// of the same fingerprint is removed first so only one authoritative copy
// exists. If L1 exceeds its capacity, the least recently used entry is
// demoted into L2 (unless already expired); if L2 then exceeds its
// capacity, its least recently used entry is discarded.
func (c *QueryCache) Put(fingerprint string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conf.L1Capacity <= 0 {
		return
	}

	delete(c.l2, fingerprint)

	now := time.Now()
	c.l1[fingerprint] = &cacheEntry{ids: copyIDs(ids), insertedAt: now, lastAccess: now}

	for len(c.l1) > c.conf.L1Capacity {
		victim, e := oldest(c.l1)
		delete(c.l1, victim)
		c.evictions++

		if c.conf.L2Capacity > 0 && now.Sub(e.insertedAt) <= c.conf.L1TTL {
			c.l2[victim] = e
			c.demotions++
		}
	}

	for len(c.l2) > c.conf.L2Capacity {
		victim, _ := oldest(c.l2)
		delete(c.l2, victim)
		c.evictions++
	}
}

// InvalidateAll drops every entry of both tiers. Called on every
// mutation: full invalidation trades hit-rate for correctness, since
// partial invalidation risks returning stale ids.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.l1) > 0 || len(c.l2) > 0 {
		c.l1 = make(map[string]*cacheEntry)
		c.l2 = make(map[string]*cacheEntry)
	}
	c.invalidations++
}

// Len returns the current entry count of each tier.
func (c *QueryCache) Len() (l1, l2 int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.l1), len(c.l2)
}

// Stats returns a snapshot of the cache counters.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		HitsL1:        c.hitsL1,
		HitsL2:        c.hitsL2,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Demotions:     c.demotions,
		Invalidations: c.invalidations,
		SizeL1:        len(c.l1),
		SizeL2:        len(c.l2),
	}
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

// oldest returns the least recently accessed entry of a tier. Tiers are
// small (tens of entries), so a linear scan beats maintaining a separate
// recency structure.
func oldest(tier map[string]*cacheEntry) (string, *cacheEntry) {
	var victim string
	var victimEntry *cacheEntry
	for fp, e := range tier {
		if victimEntry == nil || e.lastAccess.Before(victimEntry.lastAccess) {
			victim = fp
			victimEntry = e
		}
	}
	return victim, victimEntry
}

func copyIDs(ids []string) []string {
	result := make([]string, len(ids))
	copy(result, ids)
	return result
}
