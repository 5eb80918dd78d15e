/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package spatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/Rakeen70210/cartographer-sub006/geo"
)

func circleFeature(id string, lon, lat, radius float64, n int) *geojson.Feature {
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{lon + radius*math.Cos(theta), lat + radius*math.Sin(theta)})
	}
	ring = append(ring, ring[0])
	f := geojson.NewFeature(orb.Polygon{ring})
	f.ID = id
	return f
}

func lodTestConfig() Config {
	cfg := DefaultConfig()
	cfg.LOD = LODConfig{
		FullDetailZoom:           12,
		FullDetailDistanceMeters: 0,
		SimplifyToleranceDeg:     0.01,
		SimplifyMinVertices:      16,
		MinAreaPixels:            4,
	}
	return cfg
}

func TestLODSimplifiesAtLowZoom(t *testing.T) {
	idx := New(lodTestConfig())
	defer idx.Close()
	require.NoError(t, idx.Add(circleFeature("disc", 10, 10, 0.5, 128)))

	viewport := geo.Bounds{MinLon: 9, MinLat: 9, MaxLon: 11, MaxLat: 11}

	// At or above the full-detail zoom the original geometry comes back.
	res, err := idx.QueryViewport(viewport, QueryOptions{UseLOD: true, ZoomLevel: 13})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	full := geo.VertexCount(res.Features[0].Geometry)
	require.Equal(t, 129, full)

	// Zoomed out, the pre-simplified variant is substituted.
	res, err = idx.QueryViewport(viewport, QueryOptions{UseLOD: true, ZoomLevel: 5})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	simplified := geo.VertexCount(res.Features[0].Geometry)
	require.Less(t, simplified, full)
	require.GreaterOrEqual(t, simplified, 4)

	// Without LOD the zoom level is ignored.
	res, err = idx.QueryViewport(viewport, QueryOptions{ZoomLevel: 5})
	require.NoError(t, err)
	require.Equal(t, full, geo.VertexCount(res.Features[0].Geometry))
}

func TestLODCullsSubpixelFeatures(t *testing.T) {
	idx := New(lodTestConfig())
	defer idx.Close()
	require.NoError(t, idx.Add(circleFeature("disc", 10, 10, 0.5, 128)))
	require.NoError(t, idx.Add(squareFeature("speck", 10.2, 10.2, 0.001)))

	viewport := geo.Bounds{MinLon: 9, MinLat: 9, MaxLon: 11, MaxLat: 11}

	// Zoomed out, the speck covers a fraction of a pixel and is dropped.
	res, err := idx.QueryViewport(viewport, QueryOptions{UseLOD: true, ZoomLevel: 5})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"disc"}, featureIDs(res.Features))

	// Zoomed in it survives.
	res, err = idx.QueryViewport(viewport, QueryOptions{UseLOD: true, ZoomLevel: 13})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"disc", "speck"}, featureIDs(res.Features))

	// And with LOD off, zoom never culls.
	res, err = idx.QueryViewport(viewport, QueryOptions{ZoomLevel: 5})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"disc", "speck"}, featureIDs(res.Features))
}

func TestLODKeepsNearbyFeaturesFull(t *testing.T) {
	cfg := lodTestConfig()
	cfg.LOD.FullDetailDistanceMeters = 5000
	idx := New(cfg)
	defer idx.Close()
	require.NoError(t, idx.Add(circleFeature("disc", 10, 10, 0.5, 128)))

	// The disc sits at the viewport center, inside the full-detail radius,
	// so even a far-out zoom returns it unsimplified.
	res, err := idx.QueryViewport(geo.Bounds{MinLon: 9, MinLat: 9, MaxLon: 11, MaxLat: 11}, QueryOptions{UseLOD: true, ZoomLevel: 5})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	require.Equal(t, 129, geo.VertexCount(res.Features[0].Geometry))
}

func TestSimplifyForLOD(t *testing.T) {
	cfg := lodTestConfig().LOD

	// Small geometries get no variant at all.
	require.Nil(t, simplifyForLOD(squareFeature("", 0, 0, 1).Geometry, cfg))

	dense := circleFeature("", 0, 0, 0.5, 128).Geometry
	s := simplifyForLOD(dense, cfg)
	require.NotNil(t, s)
	require.Less(t, geo.VertexCount(s), geo.VertexCount(dense))

	// Simplification must not touch the stored geometry.
	require.Equal(t, 129, geo.VertexCount(dense))

	cfg.SimplifyToleranceDeg = 0
	require.Nil(t, simplifyForLOD(dense, cfg))
}

func TestPixelArea(t *testing.T) {
	// Doubling the zoom level quadruples the screen area.
	a5 := pixelArea(1e6, 5)
	a6 := pixelArea(1e6, 6)
	require.InDelta(t, 4, a6/a5, 1e-9)
	require.Greater(t, a5, 0.0)

	// At zoom 0 one pixel spans ~156km, so a square kilometer is far below
	// a single pixel.
	require.Less(t, pixelArea(1e6, 0), 1.0)
}
