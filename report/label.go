package report

import (
	"math"

	"github.com/google/btree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// LabelPoint returns the point of the largest polygon of mp that is farthest
// from its edges, found to within precision. Unlike the centroid it is always
// inside the polygon, so renderers place region labels there.
func LabelPoint(mp orb.MultiPolygon, precision float64) orb.Point {
	var poly orb.Polygon
	var area float64
	for _, p := range mp {
		if a := planar.Area(p); poly == nil || a > area {
			poly, area = p, a
		}
	}
	if len(poly) == 0 || len(poly[0]) == 0 {
		return orb.Point{}
	}

	b := poly.Bound()
	width, height := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	size := math.Min(width, height)
	if size == 0 {
		return b.Min
	}
	h := size / 2

	queue := btree.NewG[cell](8, cell.less)
	for x := b.Min[0]; x < b.Max[0]; x += size {
		for y := b.Min[1]; y < b.Max[1]; y += size {
			queue.ReplaceOrInsert(newCell(orb.Point{x + h, y + h}, h, poly))
		}
	}

	best := newCell(centroid(poly), 0, poly)
	if c := newCell(b.Center(), 0, poly); c.dist > best.dist {
		best = c
	}

	for queue.Len() > 0 {
		c, _ := queue.DeleteMax()
		if c.dist > best.dist {
			best = c
		}
		if c.max-best.dist <= precision {
			continue
		}

		h := c.h / 2
		for _, d := range [4][2]float64{{-h, -h}, {h, -h}, {-h, h}, {h, h}} {
			queue.ReplaceOrInsert(newCell(orb.Point{c.center[0] + d[0], c.center[1] + d[1]}, h, poly))
		}
	}

	return best.center
}

type cell struct {
	center orb.Point
	h      float64
	// dist is the signed distance from center to the polygon edge, negative outside.
	dist float64
	// max bounds dist for any point of the cell.
	max float64
}

func newCell(center orb.Point, h float64, poly orb.Polygon) cell {
	d := signedDistance(center, poly)
	return cell{center: center, h: h, dist: d, max: d + h*math.Sqrt2}
}

func (c cell) less(o cell) bool {
	if c.max != o.max {
		return c.max < o.max
	}
	if c.center[0] != o.center[0] {
		return c.center[0] < o.center[0]
	}
	if c.center[1] != o.center[1] {
		return c.center[1] < o.center[1]
	}
	return c.h < o.h
}

func signedDistance(p orb.Point, poly orb.Polygon) float64 {
	minSq := math.MaxFloat64
	for _, ring := range poly {
		for i := range ring {
			j := i + 1
			if j == len(ring) {
				j = 0
			}
			minSq = math.Min(minSq, planar.DistanceFromSegmentSquared(ring[i], ring[j], p))
		}
	}

	d := math.Sqrt(minSq)
	if !planar.PolygonContains(poly, p) {
		return -d
	}
	return d
}

func centroid(poly orb.Polygon) orb.Point {
	c, area := planar.CentroidArea(poly)
	if area == 0 {
		return poly[0][0]
	}
	return c
}
