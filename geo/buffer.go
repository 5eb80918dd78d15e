/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package geo

import (
	"math"
	"time"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/Rakeen70210/cartographer-sub006/x"
)

// DefaultBufferMeters is the radius used to turn a GPS fix into a revealed
// disc. Wide enough to absorb typical GPS noise without over-revealing.
const DefaultBufferMeters = 30.0

// bufferSegments is the number of perimeter points of a buffered disc.
const bufferSegments = 32

// BufferPoint returns a disc-shaped polygon of the given radius around a
// [lon, lat] fix. The perimeter is sampled along great circles so the disc
// stays metrically round at any latitude.
//
// The fix is rejected (nil result, metrics carry the error) for non-finite
// or out-of-range coordinates and for a non-positive distance.
func BufferPoint(center orb.Point, distanceMeters float64) (orb.Polygon, OpMetrics) {
	start := time.Now()
	var m OpMetrics
	defer func() { m.DurationMs = x.SinceMs(start) }()

	if res := Validate(center); !res.Valid {
		m.addError(errors.Wrapf(ErrInvalidGeometry, "buffer center: %v", res.Errors))
		return nil, m
	}
	if math.IsNaN(distanceMeters) || distanceMeters <= 0 {
		m.addError(errors.Errorf("buffer distance must be positive, got %v", distanceMeters))
		return nil, m
	}

	ll := s2.LatLngFromDegrees(center[1], center[0])
	delta := EarthAngle(distanceMeters).Radians()

	ring := make(orb.Ring, 0, bufferSegments+1)
	for i := 0; i < bufferSegments; i++ {
		// Iterate bearings counter-clockwise so the outer ring comes out CCW.
		theta := -2 * math.Pi * float64(i) / bufferSegments
		ring = append(ring, destination(ll, theta, delta))
	}
	ring = append(ring, ring[0])

	if isClockwise(ring) {
		ring.Reverse()
	}
	return orb.Polygon{ring}, m
}

// destination solves the direct geodesic problem on the sphere: the point
// reached from ll by travelling the angular distance delta on the initial
// bearing theta (radians, clockwise from north).
func destination(ll s2.LatLng, theta, delta float64) orb.Point {
	lat1 := ll.Lat.Radians()
	lon1 := ll.Lng.Radians()

	sinLat := math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta)
	lat2 := math.Asin(sinLat)
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*sinLat,
	)

	lon := lon2 * 180 / math.Pi
	// Normalize into [-180, 180].
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return orb.Point{lon, lat2 * 180 / math.Pi}
}
