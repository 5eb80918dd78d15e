/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Complexity classifies a geometry by vertex count. Downstream code uses it
// to pick level-of-detail behavior and to report calculation metrics.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"    // < 100 vertices
	ComplexityMedium Complexity = "MEDIUM" // < 1000 vertices
	ComplexityHigh   Complexity = "HIGH"
)

const (
	complexityMediumMin = 100
	complexityHighMin   = 1000
)

// ValidationResult reports the outcome of Validate. Errors make the
// geometry unusable; warnings are recoverable by Sanitize.
type ValidationResult struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	Complexity Complexity
}

func (r *ValidationResult) errorf(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate structurally checks a geometry: supported type, ring closure,
// minimum ring length, finite coordinates and coordinate range. It never
// returns an error; a nil or unsupported geometry yields an invalid result.
func Validate(g orb.Geometry) ValidationResult {
	res := ValidationResult{Valid: true, Complexity: ComplexityLow}
	if g == nil {
		res.errorf("geometry is nil")
		return res
	}

	switch v := g.(type) {
	case orb.Point:
		validateCoord(&res, v, "point")
	case orb.Polygon:
		validatePolygon(&res, v, "")
	case orb.MultiPolygon:
		if len(v) == 0 {
			res.errorf("multipolygon has no polygons")
		}
		for i, poly := range v {
			validatePolygon(&res, poly, fmt.Sprintf("polygon %d: ", i))
		}
	default:
		res.errorf("unsupported geometry type %T", g)
		return res
	}

	res.Complexity = complexityOf(VertexCount(g))
	return res
}

func validatePolygon(res *ValidationResult, p orb.Polygon, prefix string) {
	if len(p) == 0 {
		res.errorf("%spolygon has no rings", prefix)
		return
	}
	for i, ring := range p {
		if len(ring) < 4 {
			res.errorf("%sring %d has %d points, need at least 4", prefix, i, len(ring))
			continue
		}
		if !ring.Closed() {
			// Recoverable: Sanitize closes the ring.
			res.warnf("%sring %d is not closed", prefix, i)
		}
		dup := 0
		for j, c := range ring {
			validateCoord(res, c, fmt.Sprintf("%sring %d point %d", prefix, i, j))
			if j > 0 && c == ring[j-1] {
				dup++
			}
		}
		if dup > 0 {
			res.warnf("%sring %d has %d duplicate consecutive points", prefix, i, dup)
		}
	}
}

func validateCoord(res *ValidationResult, c orb.Point, what string) {
	lon, lat := c[0], c[1]
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		res.errorf("%s has non-finite coordinate", what)
		return
	}
	if lon < -180 || lon > 180 {
		res.errorf("%s longitude %v out of range", what, lon)
	}
	if lat < -90 || lat > 90 {
		res.errorf("%s latitude %v out of range", what, lat)
	}
}

// VertexCount returns the total number of coordinates in a geometry.
func VertexCount(g orb.Geometry) int {
	switch v := g.(type) {
	case orb.Point:
		return 1
	case orb.Ring:
		return len(v)
	case orb.Polygon:
		n := 0
		for _, r := range v {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range v {
			n += VertexCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, m := range v {
			n += VertexCount(m)
		}
		return n
	}
	return 0
}

func complexityOf(vertices int) Complexity {
	switch {
	case vertices >= complexityHighMin:
		return ComplexityHigh
	case vertices >= complexityMediumMin:
		return ComplexityMedium
	}
	return ComplexityLow
}

// Sanitize normalizes a geometry into a valid Polygon or MultiPolygon.
// Unclosed rings are closed, rings that stay degenerate are dropped, and a
// MultiPolygon holding a single polygon is unwrapped. Returns nil when
// nothing usable remains; it never panics on malformed input.
func Sanitize(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Polygon:
		if p := sanitizePolygon(v); p != nil {
			return p
		}
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, poly := range v {
			if p := sanitizePolygon(poly); p != nil {
				out = append(out, p)
			}
		}
		switch len(out) {
		case 0:
		case 1:
			return out[0]
		default:
			return out
		}
	}
	return nil
}

func sanitizePolygon(p orb.Polygon) orb.Polygon {
	var out orb.Polygon
	for _, ring := range p {
		r := sanitizeRing(ring)
		if r == nil {
			// Dropping the outer ring drops the polygon: holes cannot
			// stand alone.
			if len(out) == 0 {
				return nil
			}
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sanitizeRing(ring orb.Ring) orb.Ring {
	var out orb.Ring
	for i, c := range ring {
		if math.IsNaN(c[0]) || math.IsInf(c[0], 0) || math.IsNaN(c[1]) || math.IsInf(c[1], 0) {
			return nil
		}
		if c[0] < -180 || c[0] > 180 || c[1] < -90 || c[1] > 90 {
			return nil
		}
		if i > 0 && c == out[len(out)-1] {
			continue
		}
		out = append(out, c)
	}
	if len(out) >= 3 && !out.Closed() {
		out = append(out, out[0])
	}
	if len(out) < 4 {
		return nil
	}
	return out
}
