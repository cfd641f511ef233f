package tally

import (
	"maps"
	"slices"

	"github.com/royalcat/rgeocount/geomodel"
)

// Aggregate counts points per region. Regions without points are absent.
func Aggregate(points []geomodel.ResolvedPoint) map[string]int {
	counts := make(map[string]int)
	for _, p := range points {
		counts[p.RegionID]++
	}
	return counts
}

// Assemble emits one count per region in region order, zero for regions missing
// from counts. A count for a region outside the set is an error and no table is returned.
func Assemble(regions []geomodel.Region, counts map[string]int) ([]geomodel.RegionCount, error) {
	remaining := maps.Clone(counts)

	out := make([]geomodel.RegionCount, len(regions))
	for i, r := range regions {
		out[i] = geomodel.RegionCount{
			RegionID:   r.ID,
			Count:      counts[r.ID],
			Attributes: r.Attributes,
		}
		delete(remaining, r.ID)
	}

	if len(remaining) > 0 {
		return nil, &geomodel.UnknownRegionError{RegionID: firstKey(remaining)}
	}
	return out, nil
}

// Total sums all counts.
func Total(counts []geomodel.RegionCount) int {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return total
}

// firstKey keeps the reported region stable when several are unknown.
func firstKey(m map[string]int) string {
	return slices.Sorted(maps.Keys(m))[0]
}
