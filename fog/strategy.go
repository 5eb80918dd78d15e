/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package fog

import (
	"context"

	"github.com/golang/glog"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/Rakeen70210/cartographer-sub006/geo"
	"github.com/Rakeen70210/cartographer-sub006/spatial"
)

// strategy is one fallback tier: fetch either produces the revealed
// features intersecting the viewport or errors, handing over to the next
// tier. Tiers run in declaration order until one succeeds, which keeps the
// chain testable tier by tier.
type strategy struct {
	name  string
	fetch func(ctx context.Context, b geo.Bounds) ([]*geojson.Feature, error)
	// degraded marks tiers whose success still means HadErrors for the
	// caller.
	degraded bool
}

// fetchSpatial serves the common case from the index, bulk-loading it from
// the repository first when it is still empty.
func (c *Calculator) fetchSpatial(ctx context.Context, b geo.Bounds) ([]*geojson.Feature, error) {
	if c.idx == nil {
		return nil, errors.New("no spatial index")
	}

	if c.idx.Len() == 0 && c.repo != nil {
		feats, err := c.repoQuery(ctx, nil)
		if err != nil {
			// A failed bulk load means the index cannot vouch for the
			// viewport. Fail the tier so the viewport-restricted repository
			// query gets its chance; a repo that times out on full scans can
			// still serve bounded reads.
			return nil, errors.Wrap(err, "bulk load")
		}
		if len(feats) > 0 {
			added, dropped := c.idx.AddAll(feats)
			glog.V(2).Infof("fog: bulk loaded %d features into index, %d dropped", added, dropped)
		}
	}

	res, err := c.idx.QueryViewport(b, spatial.QueryOptions{
		MaxResults:           c.opts.MaxResults,
		BufferDistanceMeters: c.opts.QueryBufferMeters,
		UseLOD:               c.opts.UseLOD,
		ZoomLevel:            c.opts.ZoomLevel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "index query")
	}
	return res.Features, nil
}

// fetchViewportDB bypasses the index and asks the repository directly for
// the viewport's revealed areas, bounded by the repository timeout.
func (c *Calculator) fetchViewportDB(ctx context.Context, b geo.Bounds) ([]*geojson.Feature, error) {
	if c.repo == nil {
		return nil, errors.New("no repository")
	}
	return c.repoQuery(ctx, &b)
}

// fetchWorld is the terminal tier: no revealed features at all, which
// assemble renders as full fog over the viewport. Assuming unexplored is
// the safe default.
func fetchWorld(context.Context, geo.Bounds) ([]*geojson.Feature, error) {
	return nil, nil
}

func (c *Calculator) repoQuery(ctx context.Context, b *geo.Bounds) ([]*geojson.Feature, error) {
	rctx, cancel := context.WithTimeout(ctx, c.opts.RepositoryTimeout)
	defer cancel()
	feats, err := c.repo.RevealedAreas(rctx, b)
	if err != nil {
		return nil, errors.Wrap(err, "repository query")
	}
	return feats, nil
}
