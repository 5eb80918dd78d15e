/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package fog computes the fog-of-war layer: the geometry of everything the
// user has not yet explored inside a viewport. A Calculator combines the
// spatial index with the geometry primitives under an ordered list of
// fallback tiers, so a usable result always comes back; at worst the whole
// viewport renders as fog. Results are memoized in a ResultCache keyed by
// viewport, options and the index content version.
package fog

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/Rakeen70210/cartographer-sub006/geo"
	"github.com/Rakeen70210/cartographer-sub006/spatial"
	"github.com/Rakeen70210/cartographer-sub006/x"
)

// Operation types recorded in PerfMetrics, naming the tier that produced
// the result.
const (
	OpSpatial    = "spatial"
	OpViewportDB = "viewport-db"
	OpWorld      = "world"
)

// PerfMetrics describes how a calculation went. HadErrors means degraded
// but valid: callers must not retry on it.
type PerfMetrics struct {
	GeometryComplexity geo.Complexity
	OperationType      string
	HadErrors          bool
	FallbackUsed       bool
}

// Result is a computed fog layer. An empty feature collection is a valid
// terminal state: the viewport is fully revealed.
type Result struct {
	Fog               *geojson.FeatureCollection
	CalculationTimeMs float64
	Metrics           PerfMetrics
}

// Options configure a Calculator.
type Options struct {
	// BufferMeters is the disc radius for revealing a GPS fix.
	BufferMeters float64
	// MaxResults caps how many revealed features one calculation unions.
	MaxResults int
	// QueryBufferMeters expands viewport queries to hide edge artifacts
	// while panning.
	QueryBufferMeters float64
	UseLOD            bool
	ZoomLevel         float64
	// RepositoryTimeout bounds the fallback repository query; on expiry the
	// calculation advances to the world tier instead of hanging the caller.
	RepositoryTimeout time.Duration
	// EnableCache turns on result memoization.
	EnableCache bool
	Cache       CacheConfig
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		BufferMeters:      geo.DefaultBufferMeters,
		MaxResults:        1000,
		QueryBufferMeters: 200,
		UseLOD:            true,
		ZoomLevel:         14,
		RepositoryTimeout: 5 * time.Second,
		EnableCache:       true,
		Cache:             DefaultCacheConfig(),
	}
}

// Calculator orchestrates fog computation for one fog session. It is
// caller-constructed and caller-owned: inject the index and repository
// rather than reaching for globals, so tests and multiple sessions stay
// isolated.
type Calculator struct {
	idx   *spatial.Index
	repo  Repository
	opts  Options
	cache *ResultCache
	tiers []strategy
}

// New creates a Calculator. Either collaborator may be nil; the tier chain
// skips what is missing.
func New(idx *spatial.Index, repo Repository, opts Options) (*Calculator, error) {
	if opts.RepositoryTimeout <= 0 {
		opts.RepositoryTimeout = DefaultOptions().RepositoryTimeout
	}
	c := &Calculator{idx: idx, repo: repo, opts: opts}
	c.tiers = []strategy{
		{name: OpSpatial, fetch: c.fetchSpatial},
		{name: OpViewportDB, fetch: c.fetchViewportDB},
		{name: OpWorld, fetch: fetchWorld, degraded: true},
	}
	if opts.EnableCache {
		cache, err := NewResultCache(opts.Cache)
		if err != nil {
			return nil, errors.Wrap(err, "fog: result cache")
		}
		c.cache = cache
	}
	return c, nil
}

// Close releases the calculator's cache. The index and repository are owned
// by the caller and stay open.
func (c *Calculator) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// Cache exposes the result cache, nil when caching is disabled.
func (c *Calculator) Cache() *ResultCache { return c.cache }

// Calculate produces the fog for a viewport. The only error it returns is
// for invalid bounds; every runtime failure degrades through the tiers
// instead. Safe to re-invoke with the latest bounds at any time; results
// are a pure function of index state at call time.
func (c *Calculator) Calculate(ctx context.Context, b geo.Bounds) (Result, error) {
	start := time.Now()
	if err := b.Validate(); err != nil {
		return Result{}, err
	}

	version := uint64(0)
	if c.idx != nil {
		version = c.idx.Version()
	}
	fp := c.optionsFingerprint()
	if c.cache != nil {
		if res, ok := c.cache.Get(b, fp, version); ok {
			res.CalculationTimeMs = x.SinceMs(start)
			return res, nil
		}
	}

	var res Result
	for _, tier := range c.tiers {
		feats, err := tier.fetch(ctx, b)
		if err != nil {
			glog.Warningf("fog: %s tier failed, falling back: %v", tier.name, err)
			continue
		}
		res = c.assemble(b, feats)
		res.Metrics.OperationType = tier.name
		if tier.name != OpSpatial {
			res.Metrics.FallbackUsed = true
		}
		if tier.degraded {
			res.Metrics.HadErrors = true
		}
		break
	}
	x.AssertTruef(res.Fog != nil, "fog tier chain produced no result")

	res.CalculationTimeMs = x.SinceMs(start)
	if c.cache != nil {
		if err := c.cache.Set(b, fp, version, res); err != nil {
			glog.Warningf("fog: caching result failed: %v", err)
		}
	}
	glog.V(2).Infof("fog: %s tier computed %s fog in %.2fms",
		res.Metrics.OperationType, res.Metrics.GeometryComplexity, res.CalculationTimeMs)
	return res, nil
}

// assemble turns the revealed features for a viewport into the fog
// collection: viewport polygon minus the union of revealed geometry.
func (c *Calculator) assemble(b geo.Bounds, feats []*geojson.Feature) Result {
	var res Result
	viewport := b.Polygon()

	if len(feats) == 0 {
		res.Fog = collectionOf(viewport)
		res.Metrics.GeometryComplexity = geo.ComplexityLow
		return res
	}

	geoms := make([]orb.Geometry, 0, len(feats))
	for _, f := range feats {
		if f == nil || f.Geometry == nil {
			continue
		}
		geoms = append(geoms, f.Geometry)
	}
	revealed, um := geo.UnionAll(geoms)
	if um.FallbackUsed {
		res.Metrics.FallbackUsed = true
		res.Metrics.HadErrors = res.Metrics.HadErrors || len(um.Errors) > 0
	}
	if revealed == nil {
		// Nothing valid to subtract; the whole viewport stays fogged.
		res.Fog = collectionOf(viewport)
		res.Metrics.GeometryComplexity = geo.ComplexityLow
		return res
	}

	fogGeom, dm := geo.Difference(viewport, revealed)
	if dm.FallbackUsed {
		res.Metrics.FallbackUsed = true
	}
	if fogGeom == nil {
		// Fully revealed viewport.
		res.Fog = geojson.NewFeatureCollection()
		res.Metrics.GeometryComplexity = geo.ComplexityLow
		return res
	}
	res.Fog = collectionOf(fogGeom)
	res.Metrics.GeometryComplexity = geo.Validate(fogGeom).Complexity
	return res
}

func collectionOf(g orb.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(g)
	f.Properties["fog"] = true
	fc.Append(f)
	return fc
}

// RevealFromFix is the reverse data flow: buffer a GPS fix into a disc,
// merge it with any adjacent revealed areas, insert the result into the
// index and persist it through the repository. The index mutation advances
// the content version, invalidating cached fog lazily.
func (c *Calculator) RevealFromFix(ctx context.Context, fix orb.Point) (*geojson.Feature, error) {
	radius := c.opts.BufferMeters
	if radius <= 0 {
		radius = geo.DefaultBufferMeters
	}
	disc, bm := geo.BufferPoint(fix, radius)
	if disc == nil {
		return nil, errors.Wrapf(geo.ErrInvalidGeometry, "reveal fix: %v", bm.Errors)
	}

	merged := orb.Geometry(disc)
	var mergedID string
	var absorbed []string
	if c.idx != nil {
		// Merging reaches twice the buffer radius so two overlapping or
		// barely touching discs become one feature.
		neighbors := c.idx.QueryRadius(fix, radius*2)
		if len(neighbors) > 0 {
			geoms := []orb.Geometry{disc}
			for _, n := range neighbors {
				geoms = append(geoms, n.Geometry)
			}
			if u, _ := geo.UnionAll(geoms); u != nil {
				merged = u
				// The merged feature takes over the first neighbor's
				// identity; the rest are absorbed and must leave the index,
				// or their geometry accretes as duplicates.
				for i, n := range neighbors {
					s, ok := n.ID.(string)
					if !ok {
						continue
					}
					if i == 0 {
						mergedID = s
						continue
					}
					absorbed = append(absorbed, s)
				}
			}
		}
	}

	f := geojson.NewFeature(merged)
	if mergedID != "" {
		f.ID = mergedID
	}
	f.Properties["revealedAt"] = time.Now().UTC().Format(time.RFC3339)

	if c.repo != nil {
		rctx, cancel := context.WithTimeout(ctx, c.opts.RepositoryTimeout)
		id, err := c.repo.SaveRevealedArea(rctx, f)
		cancel()
		if err != nil {
			// Persistence failure is not fatal; the area still reveals for
			// this session.
			glog.Warningf("fog: persisting revealed area failed: %v", err)
		} else if f.ID == nil && id != "" {
			f.ID = id
		}
	}

	if c.idx != nil {
		if err := c.idx.Add(f); err != nil {
			return nil, errors.Wrap(err, "reveal fix: index insert")
		}
		for _, id := range absorbed {
			c.idx.Remove(id)
		}
	}
	return f, nil
}
