/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package fog

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/Rakeen70210/cartographer-sub006/geo"
)

// Repository is the persistence collaborator owning raw revealed-area
// records. The core only reads through it for bulk loads and fallback
// queries, and writes through it when a new fix is revealed; any error it
// returns is treated as an empty result for fallback purposes.
type Repository interface {
	// RevealedAreas returns the stored revealed areas, restricted to the
	// viewport when bounds is non-nil.
	RevealedAreas(ctx context.Context, bounds *geo.Bounds) ([]*geojson.Feature, error)

	// SaveRevealedArea persists a feature and returns its identifier.
	SaveRevealedArea(ctx context.Context, f *geojson.Feature) (string, error)
}
