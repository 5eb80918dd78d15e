/*
 * SPDX-FileCopyrightText: © Cartographer Authors
 * SPDX-License-Identifier: Apache-2.0
 */

package geo

import (
	"math"
	"sort"
	"time"

	polyclip "github.com/akavel/polyclip-go"
	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/Rakeen70210/cartographer-sub006/x"
)

// UnionAll iteratively unions a set of polygonal geometries. Invalid
// entries are skipped and logged, never fatal: metrics report how many were
// dropped and FallbackUsed is set whenever at least one was. The result is
// nil only when no valid entry remains.
func UnionAll(geoms []orb.Geometry) (orb.Geometry, OpMetrics) {
	start := time.Now()
	var m OpMetrics
	defer func() { m.DurationMs = x.SinceMs(start) }()

	var acc polyclip.Polygon
	valid := 0
	for i, g := range geoms {
		sanitized := Sanitize(g)
		if sanitized == nil {
			glog.V(2).Infof("unionAll: skipping entry %d: not a usable polygon", i)
			m.SkippedInputs++
			continue
		}
		pc := toPolyclip(sanitized)
		if len(pc) == 0 {
			m.SkippedInputs++
			continue
		}
		if valid == 0 {
			acc = pc
			valid++
			continue
		}
		merged, err := construct(acc, polyclip.UNION, pc)
		if err != nil {
			glog.Warningf("unionAll: entry %d failed, skipping: %v", i, err)
			m.addError(err)
			m.SkippedInputs++
			continue
		}
		acc = merged
		valid++
	}

	if m.SkippedInputs > 0 {
		m.FallbackUsed = true
	}
	if valid == 0 {
		return nil, m
	}
	return fromPolyclip(acc), m
}

// Difference subtracts subtrahend from minuend. On any internal failure the
// minuend comes back unchanged with FallbackUsed set: showing slightly too
// much fog beats a hole in the map, so this never returns nil for a valid
// minuend.
func Difference(minuend, subtrahend orb.Geometry) (orb.Geometry, OpMetrics) {
	start := time.Now()
	var m OpMetrics
	defer func() { m.DurationMs = x.SinceMs(start) }()

	cleanMinuend := Sanitize(minuend)
	if cleanMinuend == nil {
		m.addError(errors.Wrap(ErrInvalidGeometry, "difference minuend"))
		return nil, m
	}

	cleanSub := Sanitize(subtrahend)
	if cleanSub == nil {
		m.addError(errors.Wrap(ErrInvalidGeometry, "difference subtrahend"))
		m.FallbackUsed = true
		return cleanMinuend, m
	}

	result, err := construct(toPolyclip(cleanMinuend), polyclip.DIFFERENCE, toPolyclip(cleanSub))
	if err != nil {
		glog.Warningf("difference: clipping failed, returning minuend: %v", err)
		m.addError(err)
		m.FallbackUsed = true
		return cleanMinuend, m
	}
	return fromPolyclip(result), m
}

// construct runs one clipping operation, converting library panics on
// degenerate input into errors.
func construct(subject polyclip.Polygon, op polyclip.Op, clip polyclip.Polygon) (result polyclip.Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("clipping panicked: %v", r)
		}
	}()
	result = subject.Construct(op, clip)
	return result, nil
}

// toPolyclip flattens the rings of a Polygon or MultiPolygon into polyclip
// contours. Contours are implicitly closed, so the GeoJSON closing point is
// dropped; holes travel as plain contours under the even-odd rule.
func toPolyclip(g orb.Geometry) polyclip.Polygon {
	var out polyclip.Polygon
	addRing := func(r orb.Ring) {
		if len(r) < 4 {
			return
		}
		c := make(polyclip.Contour, 0, len(r)-1)
		for _, pt := range r[:len(r)-1] {
			c = append(c, polyclip.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, c)
	}
	switch v := g.(type) {
	case orb.Polygon:
		for _, r := range v {
			addRing(r)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				addRing(r)
			}
		}
	}
	return out
}

// fromPolyclip reassembles a flat contour list into GeoJSON ring nesting.
// polyclip returns shells and holes undistinguished; a contour contained by
// an even number of others is a shell, odd makes it a hole of its immediate
// parent. Returns nil for an empty result.
func fromPolyclip(p polyclip.Polygon) orb.Geometry {
	type contour struct {
		ring  orb.Ring
		pc    polyclip.Contour
		area  float64
		depth int
		// parent indexes the immediate enclosing contour, -1 for none.
		parent int
	}

	var cs []*contour
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(c)+1)
		for _, pt := range c {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		ring = append(ring, ring[0])
		cs = append(cs, &contour{
			ring:   ring,
			pc:     c,
			area:   math.Abs(signedArea(ring)),
			parent: -1,
		})
	}
	if len(cs) == 0 {
		return nil
	}

	for i, c := range cs {
		probe := c.pc[0]
		for j, other := range cs {
			if i == j || other.area <= c.area {
				continue
			}
			if other.pc.Contains(probe) {
				c.depth++
				if c.parent == -1 || other.area < cs[c.parent].area {
					c.parent = j
				}
			}
		}
	}

	// Assemble shells largest first so holes can find their shell's slot.
	order := make([]int, len(cs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return cs[order[a]].area > cs[order[b]].area })

	shellSlot := make(map[int]int, len(cs))
	var out orb.MultiPolygon
	for _, i := range order {
		c := cs[i]
		if c.depth%2 == 0 {
			if isClockwise(c.ring) {
				c.ring.Reverse()
			}
			shellSlot[i] = len(out)
			out = append(out, orb.Polygon{c.ring})
		}
	}
	for _, i := range order {
		c := cs[i]
		if c.depth%2 == 0 {
			continue
		}
		// Walk up to the nearest even-depth ancestor.
		parent := c.parent
		for parent != -1 && cs[parent].depth%2 != 0 {
			parent = cs[parent].parent
		}
		slot, ok := shellSlot[parent]
		if !ok {
			continue
		}
		if !isClockwise(c.ring) {
			c.ring.Reverse()
		}
		out[slot] = append(out[slot], c.ring)
	}

	if len(out) == 1 {
		return out[0]
	}
	return out
}

// signedArea is the shoelace sum of a closed ring: positive for CCW.
func signedArea(r orb.Ring) float64 {
	var a float64
	n := len(r)
	for i := 0; i < n-1; i++ {
		a += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return a / 2
}
