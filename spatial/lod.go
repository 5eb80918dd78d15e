/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/Rakeen70210/cartographer-sub006/geo"
)

// LODConfig tunes level-of-detail substitution and culling. The thresholds
// are configuration, not law: hosts with denser exploration histories may
// want a coarser tolerance.
type LODConfig struct {
	// FullDetailZoom is the zoom level at and above which features always
	// render at full fidelity.
	FullDetailZoom float64
	// FullDetailDistanceMeters keeps features near the viewport center at
	// full fidelity regardless of zoom.
	FullDetailDistanceMeters float64
	// SimplifyToleranceDeg is the Douglas-Peucker tolerance, in degrees,
	// for the pre-simplified variant built on insert.
	SimplifyToleranceDeg float64
	// SimplifyMinVertices is the vertex count below which no simplified
	// variant is kept; simplifying a 33-point disc saves nothing.
	SimplifyMinVertices int
	// MinAreaPixels culls features whose screen area at the query zoom
	// falls below this many square pixels.
	MinAreaPixels float64
}

// DefaultLODConfig returns the production defaults.
func DefaultLODConfig() LODConfig {
	return LODConfig{
		FullDetailZoom:           12,
		FullDetailDistanceMeters: 5000,
		SimplifyToleranceDeg:     0.0005,
		SimplifyMinVertices:      64,
		MinAreaPixels:            4,
	}
}

// simplifyForLOD builds the low-detail variant stored alongside an entry.
// Returns nil when the geometry is too small to bother.
func simplifyForLOD(g orb.Geometry, cfg LODConfig) orb.Geometry {
	if cfg.SimplifyToleranceDeg <= 0 {
		return nil
	}
	if geo.VertexCount(g) < cfg.SimplifyMinVertices {
		return nil
	}
	s := simplify.DouglasPeucker(cfg.SimplifyToleranceDeg).Simplify(orb.Clone(g))
	if geo.Sanitize(s) == nil {
		// Simplification collapsed the geometry; better no variant than a
		// broken one.
		return nil
	}
	return s
}

// applyLOD picks the geometry variant for one entry during a viewport
// query. keep=false means the feature is culled entirely.
func applyLOD(e *entry, viewportCenter orb.Point, zoom float64, cfg LODConfig) (g orb.Geometry, keep bool) {
	if zoom >= cfg.FullDetailZoom {
		return e.feature.Geometry, true
	}
	if cfg.FullDetailDistanceMeters > 0 &&
		geo.DistanceMeters(e.bound.Center(), viewportCenter) <= cfg.FullDetailDistanceMeters {
		return e.feature.Geometry, true
	}
	if cfg.MinAreaPixels > 0 && pixelArea(e.areaM2, zoom) < cfg.MinAreaPixels {
		return nil, false
	}
	if e.simplified != nil {
		return e.simplified, true
	}
	return e.feature.Geometry, true
}

const earthCircumferenceMeters = 2 * math.Pi * geo.EarthRadiusMeters

// pixelArea converts an area in square meters to approximate screen pixels
// at a web-mercator zoom level. The latitude stretch is ignored; this feeds
// a tunable cull threshold, not rendering.
func pixelArea(areaM2, zoom float64) float64 {
	metersPerPixel := earthCircumferenceMeters / (256 * math.Exp2(zoom))
	return areaM2 / (metersPerPixel * metersPerPixel)
}
