package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/pipeline"
	"github.com/royalcat/rgeocount/timewindow"
)

func TestWriteResultEmptyDate(t *testing.T) {
	date := timewindow.NewDate(2024, 7, 30)
	regions := []geomodel.Region{
		{ID: "A", Geometry: orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}},
	}
	res := &pipeline.Result{
		Window:      timewindow.ExactDate(date),
		Counts:      []geomodel.RegionCount{{RegionID: "A"}},
		Diagnostics: pipeline.Diagnostics{Empty: true, EmptyDate: &date},
	}

	out := new(bytes.Buffer)
	if err := writeResult(out, out, "table", regions, res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "No data available for 2024-07-30.\n") {
		t.Fatalf("expected notice first, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "TOTAL") {
		t.Fatalf("expected zero filled table, got:\n%s", out.String())
	}

	out.Reset()
	notice := new(bytes.Buffer)
	if err := writeResult(out, notice, "csv", regions, res); err != nil {
		t.Fatal(err)
	}
	if out.String() != "region_id,order_count\nA,0\n" {
		t.Fatalf("unexpected csv %q", out.String())
	}
	if notice.Len() == 0 {
		t.Fatal("expected notice on separate writer")
	}
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{"table", "csv", "json", "geojson"} {
		if err := checkFormat(f); err != nil {
			t.Fatalf("%s: %v", f, err)
		}
	}
	if err := checkFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
