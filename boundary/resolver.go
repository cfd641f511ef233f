// Package boundary turns points lying on region boundaries into points owned by
// exactly one region.
//
// Points with identical coordinates are treated as one physical order. A
// KeepPolicy picks the representative of every such group and an AssignPolicy
// picks the region it counts toward. Both default to "first": first in input
// order and first candidate region in region order.
package boundary

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/geomodel"
)

// Candidate is a point on the boundary of one or more regions.
type Candidate struct {
	Point   geomodel.PointRecord
	Regions []string
}

// Load is the number of points already owned by each region.
type Load map[string]int

type Result struct {
	Points []geomodel.ResolvedPoint
	// Dropped is the number of candidates discarded as coordinate duplicates.
	Dropped int
}

type Resolver struct {
	keep   KeepPolicy
	assign AssignPolicy
}

// NewResolver returns a resolver, nil policies fall back to KeepFirst and AssignFirst.
func NewResolver(keep KeepPolicy, assign AssignPolicy) *Resolver {
	if keep == nil {
		keep = KeepFirst
	}
	if assign == nil {
		assign = AssignFirst
	}
	return &Resolver{keep: keep, assign: assign}
}

// Resolve groups candidates by exact coordinates and keeps one point per group.
// Groups are resolved in order of their first appearance. load is not modified.
func (r *Resolver) Resolve(candidates []Candidate, load Load) (Result, error) {
	groups := groupByPoint(candidates)

	running := make(Load, len(load))
	for k, v := range load {
		running[k] = v
	}

	res := Result{
		Points:  make([]geomodel.ResolvedPoint, 0, len(groups)),
		Dropped: len(candidates) - len(groups),
	}
	for _, group := range groups {
		i := r.keep(group)
		if i < 0 || i >= len(group) {
			return Result{}, fmt.Errorf("keep policy selected %d of %d duplicates at %v", i, len(group), group[0].Point.Point)
		}
		kept := group[i]
		if len(kept.Regions) == 0 {
			return Result{}, &geomodel.UnknownRegionError{Point: &kept.Point}
		}

		region := r.assign(kept, running)
		if !slices.Contains(kept.Regions, region) {
			return Result{}, &geomodel.UnknownRegionError{RegionID: region, Point: &kept.Point}
		}
		running[region]++

		res.Points = append(res.Points, geomodel.ResolvedPoint{
			Point:    kept.Point,
			RegionID: region,
			Boundary: true,
		})
	}

	return res, nil
}

func groupByPoint(candidates []Candidate) [][]Candidate {
	index := make(map[orb.Point]int, len(candidates))
	groups := make([][]Candidate, 0, len(candidates))
	for _, c := range candidates {
		i, ok := index[c.Point.Point]
		if !ok {
			i = len(groups)
			index[c.Point.Point] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}
	return groups
}
