/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func point(lon, lat float64) orb.Point { return orb.Point{lon, lat} }

// square returns a closed square ring of the given side anchored at
// (lon, lat).
func square(lon, lat, side float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon, lat},
		{lon + side, lat},
		{lon + side, lat + side},
		{lon, lat + side},
		{lon, lat},
	}}
}

// circle returns a closed ring with n perimeter points. Radius is in
// degrees; good enough for planar test fixtures.
func circle(lon, lat, radius float64, n int) orb.Polygon {
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{lon + radius*math.Cos(theta), lat + radius*math.Sin(theta)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		geom  orb.Geometry
		valid bool
	}{
		{"nil", nil, false},
		{"point", point(-122.4, 37.7), true},
		{"point out of range", point(-200, 37.7), false},
		{"point nan", point(nan(), 37.7), false},
		{"square", square(0, 0, 1), true},
		{"empty polygon", orb.Polygon{}, false},
		{"short ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {0, 0}}}, false},
		{"nan vertex", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, nan()}, {0, 1}, {0, 0}}}, false},
		{"latitude out of range", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 91}, {0, 1}, {0, 0}}}, false},
		{"multipolygon", orb.MultiPolygon{square(0, 0, 1), square(5, 5, 1)}, true},
		{"empty multipolygon", orb.MultiPolygon{}, false},
		{"unsupported type", orb.LineString{{0, 0}, {1, 1}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.geom)
			require.Equal(t, tc.valid, res.Valid, "errors: %v", res.Errors)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	// Unclosed ring: recoverable, so valid with a warning.
	open := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	res := Validate(open)
	require.True(t, res.Valid)
	require.NotEmpty(t, res.Warnings)

	// Duplicate consecutive points warn too.
	dup := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	res = Validate(dup)
	require.True(t, res.Valid)
	require.NotEmpty(t, res.Warnings)
}

func TestValidateComplexity(t *testing.T) {
	require.Equal(t, ComplexityLow, Validate(square(0, 0, 1)).Complexity)
	require.Equal(t, ComplexityMedium, Validate(circle(0, 0, 1, 128)).Complexity)
	require.Equal(t, ComplexityHigh, Validate(circle(0, 0, 1, 1200)).Complexity)
}

func TestSanitize(t *testing.T) {
	// Closes an open ring.
	open := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	g := Sanitize(open)
	require.NotNil(t, g)
	p, ok := g.(orb.Polygon)
	require.True(t, ok)
	require.True(t, p[0].Closed())

	// Drops degenerate input entirely.
	require.Nil(t, Sanitize(nil))
	require.Nil(t, Sanitize(orb.Polygon{}))
	require.Nil(t, Sanitize(point(0, 0)))
	require.Nil(t, Sanitize(orb.Polygon{orb.Ring{{0, 0}, {nan(), 0}, {1, 1}, {0, 0}}}))

	// Unwraps a single-polygon MultiPolygon.
	g = Sanitize(orb.MultiPolygon{square(0, 0, 1)})
	_, ok = g.(orb.Polygon)
	require.True(t, ok)

	// Keeps a genuine MultiPolygon and drops only its broken member.
	g = Sanitize(orb.MultiPolygon{
		square(0, 0, 1),
		{orb.Ring{{0, 0}, {nan(), 0}, {1, 1}, {0, 0}}},
		square(5, 5, 1),
	})
	mp, ok := g.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 2)

	// Sanitizing valid input does not mutate it.
	orig := square(0, 0, 1)
	_ = Sanitize(orig)
	require.Equal(t, square(0, 0, 1), orig)
}
