package bordertree

import "github.com/paulmach/orb"

// Scan checks every border for every query. It is the reference implementation
// for BorderTree and is fine for small region sets.
type Scan[Data any] struct {
	eps     float64
	borders []border[Data]
	all     []int
}

func NewScan[Data any](eps float64) *Scan[Data] {
	return &Scan[Data]{eps: eps}
}

// InsertBorder must not be called concurrently with queries.
func (s *Scan[Data]) InsertBorder(data Data, b orb.MultiPolygon) {
	s.all = append(s.all, len(s.borders))
	s.borders = append(s.borders, border[Data]{Data: data, Polygon: b, Bound: padBound(b.Bound(), s.eps)})
}

func (s *Scan[Data]) Len() int {
	return len(s.borders)
}

func (s *Scan[Data]) Locate(point orb.Point) (within, touching []Data) {
	w, t := locateIDs(s.borders, s.all, point, s.eps)
	return pick(s.borders, w), pick(s.borders, t)
}

func (s *Scan[Data]) Contains(point orb.Point) []Data {
	within, _ := s.Locate(point)
	return within
}

func (s *Scan[Data]) Touches(point orb.Point) []Data {
	_, touching := s.Locate(point)
	return touching
}

func (s *Scan[Data]) Intersects(point orb.Point) []Data {
	w, t := locateIDs(s.borders, s.all, point, s.eps)
	return pick(s.borders, mergeIDs(w, t))
}
