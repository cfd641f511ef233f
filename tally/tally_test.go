package tally_test

import (
	"errors"
	"testing"

	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/tally"
)

func resolved(regions ...string) []geomodel.ResolvedPoint {
	out := make([]geomodel.ResolvedPoint, len(regions))
	for i, r := range regions {
		out[i] = geomodel.ResolvedPoint{Point: geomodel.PointRecord{Index: i}, RegionID: r}
	}
	return out
}

var regions = []geomodel.Region{
	{ID: "M5V", Attributes: map[string]any{"PRUID": "35"}},
	{ID: "M4C"},
	{ID: "L4B"},
}

func TestAggregate(t *testing.T) {
	counts := tally.Aggregate(resolved("M5V", "L4B", "M5V"))
	if len(counts) != 2 || counts["M5V"] != 2 || counts["L4B"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	if empty := tally.Aggregate(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", empty)
	}
}

func TestAssembleZeroFill(t *testing.T) {
	points := resolved("M5V", "L4B", "M5V")
	table, err := tally.Assemble(regions, tally.Aggregate(points))
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		id    string
		count int
	}{{"M5V", 2}, {"M4C", 0}, {"L4B", 1}}
	if len(table) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(table))
	}
	for i, w := range want {
		if table[i].RegionID != w.id || table[i].Count != w.count {
			t.Errorf("row %d = %s:%d, want %s:%d", i, table[i].RegionID, table[i].Count, w.id, w.count)
		}
	}
	if table[0].Attributes["PRUID"] != "35" {
		t.Errorf("expected attributes to pass through, got %v", table[0].Attributes)
	}
	if tally.Total(table) != len(points) {
		t.Fatalf("total %d does not match %d points", tally.Total(table), len(points))
	}
}

func TestAssembleEmpty(t *testing.T) {
	table, err := tally.Assemble(regions, tally.Aggregate(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != len(regions) || tally.Total(table) != 0 {
		t.Fatalf("expected zero filled table, got %+v", table)
	}
}

func TestAssembleUnknownRegion(t *testing.T) {
	table, err := tally.Assemble(regions, map[string]int{"M5V": 1, "ZZZ": 1, "YYY": 3})
	if table != nil {
		t.Fatalf("expected no table, got %+v", table)
	}

	var unknown *geomodel.UnknownRegionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownRegionError, got %v", err)
	}
	if unknown.RegionID != "YYY" {
		t.Fatalf("expected YYY to be reported, got %s", unknown.RegionID)
	}
}
