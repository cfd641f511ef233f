package geomodel

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Region is a named area points are counted against.
type Region struct {
	ID         string
	Geometry   orb.MultiPolygon
	Attributes map[string]any
}

// PointRecord is a single geocoded order. Point holds lon, lat.
type PointRecord struct {
	Index      int
	ID         string
	Point      orb.Point
	Timestamp  time.Time
	Attributes map[string]any
}

// Key returns the explicit id, or the input position when the record has none.
func (p PointRecord) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return "#" + strconv.Itoa(p.Index)
}

type Relation uint8

const (
	Outside Relation = iota
	Within
	OnBoundary
)

func (r Relation) String() string {
	switch r {
	case Within:
		return "within"
	case OnBoundary:
		return "on_boundary"
	default:
		return "outside"
	}
}

// Classification relates one point to the regions it falls in.
// Within has exactly one region, OnBoundary one or more, Outside none.
type Classification struct {
	Point    int
	Relation Relation
	Regions  []string
}

// ResolvedPoint is a point owned by exactly one region.
type ResolvedPoint struct {
	Point    PointRecord
	RegionID string
	// Boundary is set when the owner was chosen by boundary resolution.
	Boundary bool
}

type RegionCount struct {
	RegionID   string         `json:"region_id"`
	Count      int            `json:"order_count"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
