/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package geo

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// pointFromCoord converts a [lon, lat] coordinate to an s2.Point. The
// GeoJSON spec says coordinates are specified as [long, lat]; everything
// entering this module follows that format.
func pointFromCoord(c orb.Point) s2.Point {
	ll := s2.LatLngFromDegrees(c[1], c[0])
	return s2.PointFromLatLng(ll)
}

// LoopFromRing converts a closed GeoJSON ring to an s2.Loop.
//
// S2 requires CCW orientation, but GeoJSON in the wild carries rings in
// either winding. We assume rings are smaller than one hemisphere: first
// orient using a planar clockwise check, then verify against the loop's cap
// and flip if the approximation got it wrong.
func LoopFromRing(r orb.Ring) (*s2.Loop, error) {
	if len(r) < 4 {
		return nil, errors.Wrap(ErrInvalidGeometry, "ring with less than 4 points")
	}
	reverse := isClockwise(r)
	l := loopFromRing(r, reverse)
	if l.CapBound().Radius().Degrees() > 90 {
		l = loopFromRing(r, !reverse)
	}
	return l, nil
}

// isClockwise checks ring winding with the shoelace formula. This is the
// planar algorithm and breaks on rings containing a pole or crossing the
// antimeridian; we use it as a fast approximation and correct via CapBound.
func isClockwise(r orb.Ring) bool {
	var a float64
	n := len(r)
	for i := 0; i < n; i++ {
		p1 := r[i]
		p2 := r[(i+1)%n]
		a += (p2[0] - p1[0]) * (p1[1] + p2[1])
	}
	return a > 0
}

func loopFromRing(r orb.Ring, reverse bool) *s2.Loop {
	// The last coordinate of a GeoJSON ring repeats the first. s2 loops are
	// implicitly closed and points must not repeat, so skip it.
	n := len(r)
	pts := make([]s2.Point, n-1)
	for i := 0; i < n-1; i++ {
		var c orb.Point
		if reverse {
			c = r[n-1-i]
		} else {
			c = r[i]
		}
		pts[i] = pointFromCoord(c)
	}
	return s2.LoopFromPoints(pts)
}

// RingContainsPoint reports whether p lies inside the closed ring r.
func RingContainsPoint(r orb.Ring, p orb.Point) bool {
	l, err := LoopFromRing(r)
	if err != nil {
		return false
	}
	return l.ContainsPoint(pointFromCoord(p))
}

// GeometryContainsPoint reports whether p lies inside the outer ring of a
// Polygon or any outer ring of a MultiPolygon. Holes are ignored; callers
// use this as an adjacency check, where a fix inside a hole still counts as
// touching the feature.
func GeometryContainsPoint(g orb.Geometry, p orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return false
		}
		return RingContainsPoint(v[0], p)
	case orb.MultiPolygon:
		for _, poly := range v {
			if len(poly) > 0 && RingContainsPoint(poly[0], p) {
				return true
			}
		}
	}
	return false
}
