package geomodel

import (
	"fmt"
	"strings"
)

// IntegrityViolationError is returned when a point lies in the interior of more
// than one region, which means the region set overlaps.
type IntegrityViolationError struct {
	Point   PointRecord
	Regions []string
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("point %s (%v, %v) is inside overlapping regions: %s",
		e.Point.Key(), e.Point.Point.X(), e.Point.Point.Y(), strings.Join(e.Regions, ", "))
}

// UnknownRegionError is returned when a region id does not belong to the region set.
type UnknownRegionError struct {
	RegionID string
	Point    *PointRecord
}

func (e *UnknownRegionError) Error() string {
	if e.Point != nil {
		return fmt.Sprintf("point %s references unknown region %q", e.Point.Key(), e.RegionID)
	}
	return fmt.Sprintf("unknown region %q", e.RegionID)
}

type DuplicateRegionError struct {
	RegionID string
}

func (e *DuplicateRegionError) Error() string {
	return fmt.Sprintf("duplicate region id %q", e.RegionID)
}
