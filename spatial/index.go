/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package spatial maintains an in-memory r-tree over revealed-area features
// so the fog calculator can fetch the features relevant to a viewport or a
// radius without scanning the whole exploration history.
//
// An Index is caller-owned with an explicit lifecycle (New, Clear, Close);
// there is no package-level instance. All geometry payloads are deep-copied
// on insert and on return, so neither the supplying collaborator nor a
// querying caller can corrupt the index through aliasing.
package spatial

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/Rakeen70210/cartographer-sub006/geo"
	"github.com/Rakeen70210/cartographer-sub006/x"
)

// Config controls index construction.
type Config struct {
	// MinBranch and MaxBranch are the r-tree node fill bounds.
	MinBranch int
	MaxBranch int
	// MemoryThresholdBytes flips MemoryStats().Recommendation to
	// cleanup_required once exceeded. Zero disables the check.
	MemoryThresholdBytes int64
	LOD                  LODConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinBranch:            25,
		MaxBranch:            50,
		MemoryThresholdBytes: 50 << 20,
		LOD:                  DefaultLODConfig(),
	}
}

// QueryOptions tune a viewport query.
type QueryOptions struct {
	// MaxResults caps the result set, keeping largest-area features.
	// Zero means unlimited.
	MaxResults int
	// BufferDistanceMeters expands the query rectangle on every side to
	// avoid edge artifacts while the viewport pans.
	BufferDistanceMeters float64
	// UseLOD enables level-of-detail substitution and culling.
	UseLOD    bool
	ZoomLevel float64
}

// QueryResult is the outcome of a viewport query.
type QueryResult struct {
	Features    []*geojson.Feature
	QueryTimeMs float64
	Truncated   bool
}

// MemoryStats reports the approximate footprint of the index.
type MemoryStats struct {
	EstimatedBytes int64
	FeatureCount   int
	Recommendation string
}

const (
	RecommendationOK      = "ok"
	RecommendationCleanup = "cleanup_required"
)

// entry is the index-internal record for one revealed area. The rect is
// always the tight envelope of the geometry payload, recomputed on insert.
type entry struct {
	id         string
	feature    *geojson.Feature
	simplified orb.Geometry
	bound      orb.Bound
	rect       rtreego.Rect
	areaM2     float64
	bytes      int64
	lastQuery  uint64
}

// Bounds implements rtreego.Spatial.
func (e *entry) Bounds() rtreego.Rect { return e.rect }

// Index is an in-memory bounding-box tree over revealed-area features.
// Safe for concurrent use; a single-goroutine host pays only an uncontended
// mutex.
type Index struct {
	mu      sync.RWMutex
	cfg     Config
	tree    *rtreego.Rtree
	entries map[string]*entry
	bytes   int64
	version uint64
	queries uint64
	nextID  uint64
	dropped int
	closed  bool
}

// New creates an empty index.
func New(cfg Config) *Index {
	if cfg.MinBranch <= 0 || cfg.MaxBranch <= cfg.MinBranch {
		cfg.MinBranch, cfg.MaxBranch = DefaultConfig().MinBranch, DefaultConfig().MaxBranch
	}
	return &Index{
		cfg:     cfg,
		tree:    rtreego.NewTree(2, cfg.MinBranch, cfg.MaxBranch),
		entries: make(map[string]*entry),
	}
}

// Add validates and inserts a single feature. Invalid features are dropped
// with an error describing why; the index stays usable either way.
func (idx *Index) Add(f *geojson.Feature) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.addLocked(f)
}

// AddAll bulk-inserts features, dropping invalid entries non-fatally.
func (idx *Index) AddAll(fs []*geojson.Feature) (added, dropped int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, f := range fs {
		if err := idx.addLocked(f); err != nil {
			glog.V(2).Infof("spatial: dropping feature: %v", err)
			dropped++
			continue
		}
		added++
	}
	return added, dropped
}

func (idx *Index) addLocked(f *geojson.Feature) error {
	if idx.closed {
		return errors.New("index is closed")
	}
	if f == nil {
		idx.dropped++
		return errors.Wrap(geo.ErrInvalidGeometry, "nil feature")
	}
	res := geo.Validate(f.Geometry)
	sanitized := geo.Sanitize(f.Geometry)
	if sanitized == nil {
		idx.dropped++
		return errors.Wrapf(geo.ErrInvalidGeometry, "feature %v: %v", f.ID, res.Errors)
	}

	id := featureID(f)
	if id == "" {
		idx.nextID++
		id = fmt.Sprintf("revealed-%d", idx.nextID)
	}

	// The index owns its payload: clone the geometry and the properties so
	// later caller-side mutation cannot reach the tree.
	owned := geojson.NewFeature(orb.Clone(sanitized))
	owned.ID = id
	for k, v := range f.Properties {
		owned.Properties[k] = v
	}
	owned.Properties["id"] = id

	bound := owned.Geometry.Bound()
	rect, err := rectFromBound(bound)
	if err != nil {
		idx.dropped++
		return errors.Wrapf(err, "feature %v envelope", id)
	}

	e := &entry{
		id:         id,
		feature:    owned,
		simplified: simplifyForLOD(owned.Geometry, idx.cfg.LOD),
		bound:      bound,
		rect:       rect,
		areaM2:     float64(geo.AreaSquareMeters(owned.Geometry)),
	}
	e.bytes = estimateEntryBytes(e)

	if old, ok := idx.entries[id]; ok {
		idx.tree.Delete(old)
		idx.bytes -= old.bytes
	}
	idx.tree.Insert(e)
	idx.entries[id] = e
	idx.bytes += e.bytes
	idx.version++
	return nil
}

// QueryViewport returns the features whose envelope intersects the bounds
// expanded by BufferDistanceMeters, subject to LOD and MaxResults.
func (idx *Index) QueryViewport(b geo.Bounds, opts QueryOptions) (QueryResult, error) {
	start := time.Now()
	if err := b.Validate(); err != nil {
		return QueryResult{}, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return QueryResult{}, errors.New("index is closed")
	}

	expanded := b.Expand(opts.BufferDistanceMeters)
	rect, err := rectFromBound(expanded.Bound())
	if err != nil {
		return QueryResult{}, err
	}

	idx.queries++
	hits := idx.tree.SearchIntersect(rect)
	matched := make([]*entry, 0, len(hits))
	for _, h := range hits {
		e := h.(*entry)
		e.lastQuery = idx.queries
		matched = append(matched, e)
	}

	res := QueryResult{}
	if opts.MaxResults > 0 && len(matched) > opts.MaxResults {
		// Keep the largest features: they dominate what the user sees.
		sort.Slice(matched, func(i, j int) bool { return matched[i].areaM2 > matched[j].areaM2 })
		matched = matched[:opts.MaxResults]
		res.Truncated = true
	}

	center := b.Center()
	for _, e := range matched {
		g := e.feature.Geometry
		if opts.UseLOD {
			var keep bool
			g, keep = applyLOD(e, center, opts.ZoomLevel, idx.cfg.LOD)
			if !keep {
				continue
			}
		}
		res.Features = append(res.Features, copyFeature(e, g))
	}
	res.QueryTimeMs = x.SinceMs(start)
	glog.V(2).Infof("spatial: viewport query matched %d/%d features in %.2fms",
		len(res.Features), len(hits), res.QueryTimeMs)
	return res, nil
}

// QueryRadius returns the features whose envelope comes within radiusMeters
// of center, or which contain the center outright. Used for adjacency
// checks when merging a newly revealed area.
func (idx *Index) QueryRadius(center orb.Point, radiusMeters float64) []*geojson.Feature {
	if radiusMeters <= 0 || !geo.Validate(center).Valid {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}

	probe := geo.BoundsFromOrb(orb.Bound{Min: center, Max: center})
	// Degenerate bounds are fine here: Expand turns the point into a box.
	box := probe.Expand(radiusMeters)
	rect, err := rectFromBound(box.Bound())
	if err != nil {
		return nil
	}

	idx.queries++
	var out []*geojson.Feature
	for _, h := range idx.tree.SearchIntersect(rect) {
		e := h.(*entry)
		if !withinRadius(e, center, radiusMeters) {
			continue
		}
		e.lastQuery = idx.queries
		out = append(out, copyFeature(e, e.feature.Geometry))
	}
	return out
}

// withinRadius tests the entry envelope against a circle around center,
// with a containment check for the case where the center sits inside the
// feature itself.
func withinRadius(e *entry, center orb.Point, radiusMeters float64) bool {
	closest := orb.Point{
		clamp(center[0], e.bound.Min[0], e.bound.Max[0]),
		clamp(center[1], e.bound.Min[1], e.bound.Max[1]),
	}
	if geo.DistanceMeters(center, closest) <= radiusMeters {
		return true
	}
	return geo.GeometryContainsPoint(e.feature.Geometry, center)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Len returns the number of indexed features.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Remove deletes a feature by id, e.g. when a merge absorbed it into a
// larger one. Returns false for an unknown id.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return false
	}
	e, ok := idx.entries[id]
	if !ok {
		return false
	}
	idx.tree.Delete(e)
	delete(idx.entries, id)
	idx.bytes -= e.bytes
	idx.version++
	return true
}

// Dropped returns how many invalid features were rejected on insert.
func (idx *Index) Dropped() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dropped
}

// Version advances on every successful mutation. The fog result cache keys
// on it, so stale cached results become unreachable the moment the index
// changes.
func (idx *Index) Version() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.version
}

// Clear empties the index, returning it to the Empty state.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return
	}
	idx.tree = rtreego.NewTree(2, idx.cfg.MinBranch, idx.cfg.MaxBranch)
	idx.entries = make(map[string]*entry)
	idx.bytes = 0
	idx.version++
}

// Close clears the index and rejects further use.
func (idx *Index) Close() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tree = nil
	idx.entries = nil
	idx.bytes = 0
	idx.closed = true
}

func featureID(f *geojson.Feature) string {
	if s, ok := f.ID.(string); ok && s != "" {
		return s
	}
	if s, ok := f.Properties["id"].(string); ok && s != "" {
		return s
	}
	return ""
}

// copyFeature builds a caller-owned feature around g. Geometry is cloned so
// query results never alias index internals.
func copyFeature(e *entry, g orb.Geometry) *geojson.Feature {
	f := geojson.NewFeature(orb.Clone(g))
	f.ID = e.id
	for k, v := range e.feature.Properties {
		f.Properties[k] = v
	}
	return f
}

// rectFromBound converts an envelope to an r-tree rectangle. rtreego
// rejects zero-length sides, so degenerate envelopes get an epsilon pad.
func rectFromBound(b orb.Bound) (rtreego.Rect, error) {
	const eps = 1e-9
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < eps {
		w = eps
	}
	if h < eps {
		h = eps
	}
	return rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
}
