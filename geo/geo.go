/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

// Package geo implements the geometry primitives the fog pipeline is built
// on: validation and sanitization of GeoJSON geometries, buffering of GPS
// fixes into disc polygons, and polygon union/difference.
//
// Every operation here is deterministic, side-effect free and total: a
// malformed input degrades to a documented fallback value instead of an
// error crossing the package boundary. GPS noise and partially written
// records are normal inputs for this pipeline, not exceptional ones.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidGeometry marks geometry that failed structural validation.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrInvalidBounds marks viewport bounds that violate the bounds
	// invariant. Bounds are rejected, never clamped.
	ErrInvalidBounds = errors.New("invalid viewport bounds")
)

// Bounds is an axis-aligned viewport rectangle in geographic degrees.
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Validate checks the bounds invariant: min strictly less than max on both
// axes and all values inside [-180,180] x [-90,90].
func (b Bounds) Validate() error {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(ErrInvalidBounds, "non-finite coordinate")
		}
	}
	if b.MinLon < -180 || b.MaxLon > 180 || b.MinLat < -90 || b.MaxLat > 90 {
		return errors.Wrapf(ErrInvalidBounds, "out of range [%v %v %v %v]",
			b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
		return errors.Wrapf(ErrInvalidBounds, "degenerate or inverted [%v %v %v %v]",
			b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	return nil
}

// Polygon returns the bounds as a closed counter-clockwise ring.
func (b Bounds) Polygon() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}}
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() orb.Point {
	return orb.Point{(b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2}
}

// Bound converts to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// BoundsFromOrb converts an orb.Bound back into Bounds.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{
		MinLon: b.Min[0], MinLat: b.Min[1],
		MaxLon: b.Max[0], MaxLat: b.Max[1],
	}
}

// Expand grows the bounds by the given distance in meters on every side,
// clamping the result to the valid coordinate range. Used to avoid edge
// artifacts while the viewport is panning.
func (b Bounds) Expand(meters float64) Bounds {
	if meters <= 0 {
		return b
	}
	dLat := meters / metersPerDegreeLat
	// Longitude degrees shrink with latitude. Use the widest absolute
	// latitude so the expansion is never too small.
	lat := math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat))
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLon := meters / (metersPerDegreeLat * cos)
	return Bounds{
		MinLon: math.Max(b.MinLon-dLon, -180),
		MinLat: math.Max(b.MinLat-dLat, -90),
		MaxLon: math.Min(b.MaxLon+dLon, 180),
		MaxLat: math.Min(b.MaxLat+dLat, 90),
	}
}

// metersPerDegreeLat is the length of one degree of latitude. Exact enough
// for bounds expansion; precise distances go through the s2 helpers.
const metersPerDegreeLat = 111320.0

// OpMetrics describes how a geometry operation went. Operations always
// return a usable value; the metrics say whether it is exact.
type OpMetrics struct {
	DurationMs    float64
	FallbackUsed  bool
	SkippedInputs int
	Errors        []string
}

func (m *OpMetrics) addError(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err.Error())
	}
}
