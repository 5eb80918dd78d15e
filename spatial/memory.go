/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package spatial

import (
	"sort"

	"github.com/golang/glog"

	"github.com/Rakeen70210/cartographer-sub006/geo"
)

// MemoryStats reports the approximate index footprint. EstimatedBytes is a
// model, not an exact heap measurement: coordinate storage dominates
// geometry memory, so the estimate sums coordinates plus fixed per-feature
// overhead.
func (idx *Index) MemoryStats() MemoryStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := MemoryStats{
		EstimatedBytes: idx.bytes,
		FeatureCount:   len(idx.entries),
		Recommendation: RecommendationOK,
	}
	if idx.cfg.MemoryThresholdBytes > 0 && idx.bytes > idx.cfg.MemoryThresholdBytes {
		stats.Recommendation = RecommendationCleanup
	}
	return stats
}

const (
	bytesPerCoordinate = 16
	// entryOverheadBytes covers the entry struct, feature envelope, id
	// string, properties map and the r-tree slot.
	entryOverheadBytes = 512
)

func estimateEntryBytes(e *entry) int64 {
	n := geo.VertexCount(e.feature.Geometry)
	if e.simplified != nil {
		n += geo.VertexCount(e.simplified)
	}
	return int64(n)*bytesPerCoordinate + entryOverheadBytes
}

// OptimizeMemory evicts features to pull the index back under its memory
// threshold, least-recently-queried and smallest first. With aggressive
// false only the stale three quarters of the index is eligible and
// simplified variants of the rest are dropped; aggressive widens
// eligibility to everything and targets half the threshold. Returns the
// number of features evicted.
func (idx *Index) OptimizeMemory(aggressive bool) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed || idx.cfg.MemoryThresholdBytes <= 0 {
		return 0
	}

	target := idx.cfg.MemoryThresholdBytes
	if aggressive {
		target /= 2
	}
	if idx.bytes <= target {
		return 0
	}

	ordered := make([]*entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].lastQuery != ordered[j].lastQuery {
			return ordered[i].lastQuery < ordered[j].lastQuery
		}
		if ordered[i].areaM2 != ordered[j].areaM2 {
			return ordered[i].areaM2 < ordered[j].areaM2
		}
		return ordered[i].id < ordered[j].id
	})

	eligible := ordered
	if !aggressive {
		eligible = ordered[:len(ordered)*3/4]
		// Recently queried entries survive, but their low-detail variants
		// are rebuilt on demand cheaply enough to shed now.
		for _, e := range ordered[len(eligible):] {
			if e.simplified != nil {
				idx.bytes -= e.bytes
				e.simplified = nil
				e.bytes = estimateEntryBytes(e)
				idx.bytes += e.bytes
			}
		}
	}

	evicted := 0
	for _, e := range eligible {
		if idx.bytes <= target {
			break
		}
		idx.tree.Delete(e)
		delete(idx.entries, e.id)
		idx.bytes -= e.bytes
		evicted++
	}

	if evicted > 0 {
		idx.version++
		glog.Infof("spatial: memory optimization evicted %d features, %d bytes remain (aggressive=%v)",
			evicted, idx.bytes, aggressive)
	}
	return evicted
}
