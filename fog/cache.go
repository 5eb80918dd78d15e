/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package fog

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dgryski/go-farm"
	"github.com/golang/glog"
	"github.com/golang/snappy"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/Rakeen70210/cartographer-sub006/geo"
	"github.com/Rakeen70210/cartographer-sub006/x"
)

// CacheConfig tunes the fog result cache.
type CacheConfig struct {
	// MaxBytes bounds the total cost of cached payloads.
	MaxBytes int64
	// NumCounters sizes the admission policy's frequency sketch; around
	// ten times the expected entry count.
	NumCounters int64
	// BoundsTolerance is the viewport rounding grid in degrees: viewports
	// within this tolerance share a cache entry.
	BoundsTolerance float64
	// CompressionThreshold is the payload size in bytes past which stored
	// geometry is snappy-compressed.
	CompressionThreshold int
	// TTL expires entries that survive eviction; zero keeps them until
	// evicted or invalidated.
	TTL time.Duration
}

// DefaultCacheConfig returns the production defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxBytes:             10 << 20,
		NumCounters:          10_000,
		BoundsTolerance:      0.0001, // ~11m, well under one pixel at street zoom
		CompressionThreshold: 8 << 10,
		TTL:                  5 * time.Minute,
	}
}

// cacheEntry is the stored value: the marshaled fog collection plus the
// request fingerprint needed to re-verify a hit.
type cacheEntry struct {
	bounds     geo.Bounds
	version    uint64
	payload    []byte
	compressed bool
	metrics    PerfMetrics
	createdAt  time.Time
}

// ResultCache memoizes fog results during rapid viewport changes. Keys
// fingerprint the rounded viewport bounds and calculation options, with the
// index content version appended: an index mutation changes the version and
// silently orphans every prior entry, so invalidation is lazy and O(1).
//
// Stored values are marshaled GeoJSON, not live geometry. Every Get
// unmarshals a fresh copy, so no caller can mutate another's fog through
// the cache.
type ResultCache struct {
	cfg      CacheConfig
	cache    *ristretto.Cache[string, *cacheEntry]
	rejected atomic.Uint64
}

// CacheStats reports cache effectiveness. Entry and byte counts derive from
// eviction metrics and are approximate.
type CacheStats struct {
	TotalEntries     uint64
	Hits             uint64
	Misses           uint64
	HitRatio         float64
	MemoryUsageBytes uint64
	EvictedEntries   uint64
}

// NewResultCache builds a ResultCache.
func NewResultCache(cfg CacheConfig) (*ResultCache, error) {
	def := DefaultCacheConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = def.NumCounters
	}
	if cfg.BoundsTolerance <= 0 {
		cfg.BoundsTolerance = def.BoundsTolerance
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = def.CompressionThreshold
	}

	rc := &ResultCache{cfg: cfg}
	var err error
	rc.cache, err = ristretto.NewCache(&ristretto.Config[string, *cacheEntry]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
		Metrics:     true,
		Cost: func(e *cacheEntry) int64 {
			return int64(len(e.payload)) + 128
		},
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// optionsFingerprint hashes the options that change calculation output, so
// the same viewport at a different zoom or buffer gets its own cache slot.
func (c *Calculator) optionsFingerprint() uint64 {
	var buf [33]byte
	binary.BigEndian.PutUint64(buf[0:], math.Float64bits(c.opts.BufferMeters))
	binary.BigEndian.PutUint64(buf[8:], uint64(c.opts.MaxResults))
	binary.BigEndian.PutUint64(buf[16:], math.Float64bits(c.opts.QueryBufferMeters))
	binary.BigEndian.PutUint64(buf[24:], math.Float64bits(c.opts.ZoomLevel))
	if c.opts.UseLOD {
		buf[32] = 1
	}
	return farm.Fingerprint64(buf[:])
}

// key fingerprints the rounded bounds and options, then appends the content
// version so stale entries are unreachable rather than swept.
func (rc *ResultCache) key(b geo.Bounds, optsFP, version uint64) string {
	tol := rc.cfg.BoundsTolerance
	x.AssertTrue(tol > 0)
	q := func(v float64) uint64 { return uint64(int64(math.Round(v / tol))) }

	var buf [40]byte
	binary.BigEndian.PutUint64(buf[0:], q(b.MinLon))
	binary.BigEndian.PutUint64(buf[8:], q(b.MinLat))
	binary.BigEndian.PutUint64(buf[16:], q(b.MaxLon))
	binary.BigEndian.PutUint64(buf[24:], q(b.MaxLat))
	binary.BigEndian.PutUint64(buf[32:], optsFP)

	var key [16]byte
	binary.BigEndian.PutUint64(key[0:], farm.Fingerprint64(buf[:]))
	binary.BigEndian.PutUint64(key[8:], version)
	return string(key[:])
}

// Get returns a cached result for a viewport. A stored entry only counts as
// a hit when its viewport is within tolerance of the request and its
// content version matches; anything else is a miss even if present.
func (rc *ResultCache) Get(b geo.Bounds, optsFP, version uint64) (Result, bool) {
	e, ok := rc.cache.Get(rc.key(b, optsFP, version))
	if !ok {
		return Result{}, false
	}
	if e.version != version || !rc.withinTolerance(e.bounds, b) {
		rc.rejected.Add(1)
		return Result{}, false
	}

	payload := e.payload
	if e.compressed {
		var err error
		payload, err = snappy.Decode(nil, e.payload)
		if err != nil {
			rc.rejected.Add(1)
			glog.Warningf("fog cache: corrupt compressed entry dropped: %v", err)
			return Result{}, false
		}
	}
	fc, err := geojson.UnmarshalFeatureCollection(payload)
	if err != nil {
		rc.rejected.Add(1)
		glog.Warningf("fog cache: corrupt entry dropped: %v", err)
		return Result{}, false
	}
	return Result{Fog: fc, Metrics: e.metrics}, true
}

// Set stores a result. A later Set for the same key overwrites an earlier
// one; last writer wins, which is fine because results are a pure function
// of index state at call time.
func (rc *ResultCache) Set(b geo.Bounds, optsFP, version uint64, res Result) error {
	if res.Fog == nil {
		return errors.New("nil fog collection")
	}
	payload, err := res.Fog.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "marshal fog")
	}
	compressed := false
	if len(payload) > rc.cfg.CompressionThreshold {
		payload = snappy.Encode(nil, payload)
		compressed = true
	}
	e := &cacheEntry{
		bounds:     b,
		version:    version,
		payload:    payload,
		compressed: compressed,
		metrics:    res.Metrics,
		createdAt:  time.Now(),
	}
	rc.cache.SetWithTTL(rc.key(b, optsFP, version), e, 0, rc.cfg.TTL)
	return nil
}

func (rc *ResultCache) withinTolerance(a, b geo.Bounds) bool {
	tol := rc.cfg.BoundsTolerance
	return math.Abs(a.MinLon-b.MinLon) <= tol &&
		math.Abs(a.MinLat-b.MinLat) <= tol &&
		math.Abs(a.MaxLon-b.MaxLon) <= tol &&
		math.Abs(a.MaxLat-b.MaxLat) <= tol
}

// Stats reports hit/miss/eviction counters.
func (rc *ResultCache) Stats() CacheStats {
	m := rc.cache.Metrics
	rejected := rc.rejected.Load()

	hits := m.Hits()
	if hits >= rejected {
		hits -= rejected
	}
	var entries uint64
	if added := m.KeysAdded(); added > m.KeysEvicted() {
		entries = added - m.KeysEvicted()
	}
	var mem uint64
	if m.CostAdded() > m.CostEvicted() {
		mem = m.CostAdded() - m.CostEvicted()
	}

	s := CacheStats{
		TotalEntries:     entries,
		Hits:             hits,
		Misses:           m.Misses() + rejected,
		MemoryUsageBytes: mem,
		EvictedEntries:   m.KeysEvicted(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// Wait blocks until buffered writes are applied. Mainly for tests and
// benchmarks that read their own writes.
func (rc *ResultCache) Wait() { rc.cache.Wait() }

// Clear drops every entry.
func (rc *ResultCache) Clear() { rc.cache.Clear() }

// Close releases the cache engine.
func (rc *ResultCache) Close() { rc.cache.Close() }
