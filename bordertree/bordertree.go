package bordertree

import (
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tidwall/qtree"
)

// minSearchPad keeps bound edges inside the quad tree search window even with a zero epsilon.
const minSearchPad = 1e-12

// BorderTree answers point-in-region queries. Candidate borders are found by
// bounding box in a quad tree and then checked with Locate.
type BorderTree[Data any] struct {
	mu      sync.RWMutex
	eps     float64
	borders []border[Data]
	qt      qtree.QTree
}

func NewBorderTree[Data any](eps float64) *BorderTree[Data] {
	return &BorderTree[Data]{eps: eps}
}

type border[D any] struct {
	Data    D
	Polygon orb.MultiPolygon
	Bound   orb.Bound
}

func (bt *BorderTree[Data]) InsertBorder(data Data, b orb.MultiPolygon) {
	bound := padBound(b.Bound(), bt.eps)

	bt.mu.Lock()
	defer bt.mu.Unlock()

	id := len(bt.borders)
	bt.borders = append(bt.borders, border[Data]{Data: data, Polygon: b, Bound: bound})
	bt.qt.Insert(bound.Min, bound.Max, id)
}

func (bt *BorderTree[Data]) Len() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return len(bt.borders)
}

// Locate returns the borders whose interior contains point and the borders whose
// boundary contains it, both in insertion order.
func (bt *BorderTree[Data]) Locate(point orb.Point) (within, touching []Data) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	w, t := bt.locateIDs(point)
	return pick(bt.borders, w), pick(bt.borders, t)
}

func (bt *BorderTree[Data]) Contains(point orb.Point) []Data {
	within, _ := bt.Locate(point)
	return within
}

func (bt *BorderTree[Data]) Touches(point orb.Point) []Data {
	_, touching := bt.Locate(point)
	return touching
}

func (bt *BorderTree[Data]) Intersects(point orb.Point) []Data {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	w, t := bt.locateIDs(point)
	return pick(bt.borders, mergeIDs(w, t))
}

func (bt *BorderTree[Data]) locateIDs(point orb.Point) (within, touching []int) {
	pad := max(bt.eps, minSearchPad)
	window := padBound(orb.Bound{Min: point, Max: point}, pad)

	var ids []int
	bt.qt.Search(window.Min, window.Max, func(_, _ [2]float64, data interface{}) bool {
		ids = append(ids, data.(int))
		return true
	})
	slices.Sort(ids)

	return locateIDs(bt.borders, ids, point, bt.eps)
}

func locateIDs[D any](borders []border[D], ids []int, point orb.Point, eps float64) (within, touching []int) {
	for _, id := range ids {
		b := borders[id]
		if !b.Bound.Contains(point) {
			continue
		}
		switch Locate(b.Polygon, point, eps) {
		case Interior:
			within = append(within, id)
		case Boundary:
			touching = append(touching, id)
		}
	}
	return within, touching
}

func pick[D any](borders []border[D], ids []int) []D {
	if len(ids) == 0 {
		return nil
	}
	out := make([]D, len(ids))
	for i, id := range ids {
		out[i] = borders[id].Data
	}
	return out
}

// mergeIDs merges two ascending id lists.
func mergeIDs(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return out
}
