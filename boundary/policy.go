package boundary

import "fmt"

// KeepPolicy returns the index of the retained point within a duplicate group.
// Groups are never empty and are in input order.
type KeepPolicy func(group []Candidate) int

// AssignPolicy returns the region a retained point counts toward. It must be one
// of c.Regions. load holds current per-region counts and must not be modified.
type AssignPolicy func(c Candidate, load Load) string

func KeepFirst(group []Candidate) int {
	return 0
}

// KeepEarliest keeps the point with the earliest timestamp, ties keep the first.
func KeepEarliest(group []Candidate) int {
	best := 0
	for i, c := range group[1:] {
		if c.Point.Timestamp.Before(group[best].Point.Timestamp) {
			best = i + 1
		}
	}
	return best
}

// KeepLatest keeps the point with the latest timestamp, ties keep the first.
func KeepLatest(group []Candidate) int {
	best := 0
	for i, c := range group[1:] {
		if c.Point.Timestamp.After(group[best].Point.Timestamp) {
			best = i + 1
		}
	}
	return best
}

func AssignFirst(c Candidate, _ Load) string {
	return c.Regions[0]
}

// AssignLeastLoaded spreads boundary points over the candidate region with the
// fewest points so far, ties go to the first candidate.
func AssignLeastLoaded(c Candidate, load Load) string {
	best := c.Regions[0]
	for _, r := range c.Regions[1:] {
		if load[r] < load[best] {
			best = r
		}
	}
	return best
}

func ParseKeepPolicy(name string) (KeepPolicy, error) {
	switch name {
	case "", "first":
		return KeepFirst, nil
	case "earliest":
		return KeepEarliest, nil
	case "latest":
		return KeepLatest, nil
	}
	return nil, fmt.Errorf("unknown keep policy %q", name)
}

func ParseAssignPolicy(name string) (AssignPolicy, error) {
	switch name {
	case "", "first":
		return AssignFirst, nil
	case "least-loaded":
		return AssignLeastLoaded, nil
	}
	return nil, fmt.Errorf("unknown assign policy %q", name)
}
