package bordertree

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultEpsilon is the boundary tolerance in coordinate units (degrees for lon/lat input).
const DefaultEpsilon = 1e-9

type Location uint8

const (
	Exterior Location = iota
	Interior
	Boundary
)

func (l Location) String() string {
	switch l {
	case Interior:
		return "interior"
	case Boundary:
		return "boundary"
	default:
		return "exterior"
	}
}

// Locate reports where point lies relative to mp. A point closer than eps to any
// ring segment, holes included, is on the boundary.
func Locate(mp orb.MultiPolygon, point orb.Point, eps float64) Location {
	for _, poly := range mp {
		for _, ring := range poly {
			if onRing(ring, point, eps) {
				return Boundary
			}
		}
	}

	if planar.MultiPolygonContains(mp, point) {
		return Interior
	}
	return Exterior
}

func onRing(r orb.Ring, point orb.Point, eps float64) bool {
	if len(r) < 2 {
		return false
	}

	for i := 1; i < len(r); i++ {
		if planar.DistanceFromSegment(r[i-1], r[i], point) <= eps {
			return true
		}
	}

	// unclosed rings are implicitly closed
	if r[0] != r[len(r)-1] {
		return planar.DistanceFromSegment(r[len(r)-1], r[0], point) <= eps
	}
	return false
}

func padBound(b orb.Bound, pad float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min[0] - pad, b.Min[1] - pad},
		Max: orb.Point{b.Max[0] + pad, b.Max[1] + pad},
	}
}
