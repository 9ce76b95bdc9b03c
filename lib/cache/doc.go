// Package cache implements the two-tier query result cache: a map from
// query fingerprint to result id list, consulted before any search is
// evaluated and invalidated in full on every mutation.
//
// Key Features:
//   - Two independently bounded tiers: small/short-TTL L1, larger/longer-TTL L2
//   - Capacity eviction from L1 demotes into L2 instead of discarding
//   - At most one authoritative copy of a fingerprint across both tiers
//   - Full invalidation on mutation (correctness over hit-rate)
//   - Read-only hit/miss/eviction statistics
//
// Implementation Details:
//
//   - Expiry is checked lazily on access against each tier's TTL; an
//     expired entry found during Get is dropped and the lookup continues
//     as a miss for that tier.
//
//   - Demotion carries the original insertion time with the entry, so a
//     demoted entry's remaining life in L2 is measured from when the
//     result was computed, not from when it left L1. An entry whose L1
//     TTL already lapsed is discarded at demotion time rather than given
//     a second life.
//
//   - Eviction picks the least recently used entry by linear scan. The
//     tiers are deliberately small; bookkeeping a recency list would cost
//     more than it saves.
package cache
