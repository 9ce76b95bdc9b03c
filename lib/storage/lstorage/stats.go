package lstorage

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskvault/taskvault/lib/storage"
)

// --------------------------------------------------------------------------
// Store Statistics
// --------------------------------------------------------------------------

// storeStats holds the store's monitoring counters. The hot read-path
// counters are sharded xsync counters so concurrent searches never
// contend on them; the metrics set mirrors everything as gauges for
// Prometheus exposition. All of it is output-only.
type storeStats struct {
	set *metrics.Set

	mutations *xsync.Counter
	indexed   *xsync.Counter
	scanned   *xsync.Counter
	rebuilds  *xsync.Counter
}

func newStoreStats(s *storeImpl) *storeStats {
	st := &storeStats{
		set:       metrics.NewSet(),
		mutations: xsync.NewCounter(),
		indexed:   xsync.NewCounter(),
		scanned:   xsync.NewCounter(),
		rebuilds:  xsync.NewCounter(),
	}

	st.set.NewGauge(`taskvault_entities`, func() float64 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return float64(len(s.entities))
	})
	st.set.NewGauge(`taskvault_dirty`, func() float64 {
		if s.buf.IsDirty() {
			return 1
		}
		return 0
	})
	st.set.NewGauge(`taskvault_flushes_total`, func() float64 {
		flushes, _ := s.buf.Counters()
		return float64(flushes)
	})
	st.set.NewGauge(`taskvault_flush_failures_total`, func() float64 {
		_, failures := s.buf.Counters()
		return float64(failures)
	})
	st.set.NewGauge(`taskvault_mutations_total`, func() float64 {
		return float64(st.mutations.Value())
	})
	st.set.NewGauge(`taskvault_cache_hits_total`, func() float64 {
		return float64(s.qcache.Stats().Hits())
	})
	st.set.NewGauge(`taskvault_cache_misses_total`, func() float64 {
		return float64(s.qcache.Stats().Misses)
	})
	st.set.NewGauge(`taskvault_cache_hit_rate`, func() float64 {
		return s.qcache.Stats().HitRate()
	})
	st.set.NewGauge(`taskvault_searches_indexed_total`, func() float64 {
		return float64(st.indexed.Value())
	})
	st.set.NewGauge(`taskvault_searches_scanned_total`, func() float64 {
		return float64(st.scanned.Value())
	})
	st.set.NewGauge(`taskvault_index_rebuilds_total`, func() float64 {
		return float64(st.rebuilds.Value())
	})

	return st
}

// Statistics assembles the read-only monitoring snapshot exposed to
// collaborators (docu see storage.IStorage).
func (s *storeImpl) Statistics() storage.Statistics {
	s.mu.RLock()
	entityCount := len(s.entities)
	s.mu.RUnlock()

	cs := s.qcache.Stats()
	flushes, failures := s.buf.Counters()

	indexed := uint64(s.stats.indexed.Value())
	scanned := uint64(s.stats.scanned.Value())
	coverage := 0.0
	if indexed+scanned > 0 {
		coverage = float64(indexed) / float64(indexed+scanned)
	}

	return storage.Statistics{
		EntityCount:   entityCount,
		Dirty:         s.buf.IsDirty(),
		LastFlush:     s.buf.LastFlush(),
		FlushCount:    flushes,
		FlushFailures: failures,

		CacheHits:          cs.Hits(),
		CacheMisses:        cs.Misses,
		CacheHitRate:       cs.HitRate(),
		CacheEvictions:     cs.Evictions,
		CacheDemotions:     cs.Demotions,
		CacheInvalidations: cs.Invalidations,

		IndexedSearches: indexed,
		ScannedSearches: scanned,
		IndexCoverage:   coverage,
		IndexRebuilds:   uint64(s.stats.rebuilds.Value()),
	}
}

// IPrometheusWriter is implemented by stores that expose their metrics
// in Prometheus exposition format. Kept out of storage.IStorage so the
// capability interface stays free of transport concerns.
type IPrometheusWriter interface {
	WritePrometheus(w io.Writer)
}

// WritePrometheus writes the store's metrics in Prometheus exposition
// format. Monitoring endpoints and the CLI stats command use this; the
// IStorage interface itself stays free of transport concerns.
func (s *storeImpl) WritePrometheus(w io.Writer) {
	s.stats.set.WritePrometheus(w)
}
