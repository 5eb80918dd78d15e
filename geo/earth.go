/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package geo

import (
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// Helper functions for earth distances

// EarthRadiusMeters is the radius of the earth in meters (in a spherical
// earth model).
const EarthRadiusMeters = 1000 * 6371

// Length denotes a length on Earth
type Length float64

// EarthDistance converts an angle to distance on earth in meters.
func EarthDistance(angle s1.Angle) Length {
	return Length(angle.Radians() * EarthRadiusMeters)
}

// EarthAngle converts a distance on earth in meters to an angle.
func EarthAngle(dist float64) s1.Angle {
	return s1.Angle(dist / EarthRadiusMeters)
}

// Area denotes an area on Earth
type Area float64

// EarthArea converts an area on the unit sphere to an area on earth in
// sq. meters.
func EarthArea(a float64) Area {
	return Area(a * EarthRadiusMeters * EarthRadiusMeters)
}

// AreaSquareMeters returns the spherical area covered by the outer rings of
// a Polygon or MultiPolygon. Holes are ignored; the callers rank and cull
// features by footprint, where the outer envelope is what matters.
func AreaSquareMeters(g orb.Geometry) Area {
	var sr float64
	switch v := g.(type) {
	case orb.Polygon:
		sr = outerRingArea(v)
	case orb.MultiPolygon:
		for _, p := range v {
			sr += outerRingArea(p)
		}
	}
	return EarthArea(sr)
}

func outerRingArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	l, err := LoopFromRing(p[0])
	if err != nil {
		return 0
	}
	return l.Area()
}

// DistanceMeters returns the great-circle distance between two [lon, lat]
// points.
func DistanceMeters(a, b orb.Point) float64 {
	la := s2.LatLngFromDegrees(a[1], a[0])
	lb := s2.LatLngFromDegrees(b[1], b[0])
	return float64(EarthDistance(la.Distance(lb)))
}

// String converts the length to human readable units.
func (l Length) String() string {
	if l > 1000 {
		return fmt.Sprintf("%.3f km", l/1000)
	} else if l < 1 {
		return fmt.Sprintf("%.3f cm", l*100)
	}
	return fmt.Sprintf("%.3f m", l)
}

const km2 = 1000 * 1000

// String converts the area to human readable units.
func (a Area) String() string {
	if a > km2 {
		return fmt.Sprintf("%.3f km^2", a/km2)
	}
	return fmt.Sprintf("%.3f m^2", a)
}
