package timewindow_test

import (
	"slices"
	"testing"
	"time"

	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/timewindow"
)

func resolved(ts ...time.Time) []geomodel.ResolvedPoint {
	out := make([]geomodel.ResolvedPoint, len(ts))
	for i, t := range ts {
		out[i] = geomodel.ResolvedPoint{Point: geomodel.PointRecord{Index: i, Timestamp: t}, RegionID: "A"}
	}
	return out
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		all     bool
		date    string
		wantErr bool
	}{
		{"", true, "", false},
		{"all", true, "", false},
		{"All Time", true, "", false},
		{"all-time", true, "", false},
		{"2024-07-30", false, "2024-07-30", false},
		{" 2024-01-02 ", false, "2024-01-02", false},
		{"2024-13-01", false, "", true},
		{"yesterday", false, "", true},
	}

	for _, tt := range tests {
		w, err := timewindow.ParseWindow(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWindow(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindow(%q): %v", tt.in, err)
			continue
		}
		if w.IsAllTime() != tt.all {
			t.Errorf("ParseWindow(%q) all time = %v, want %v", tt.in, w.IsAllTime(), tt.all)
		}
		if d, ok := w.Date(); ok && d.String() != tt.date {
			t.Errorf("ParseWindow(%q) date = %s, want %s", tt.in, d, tt.date)
		}
	}
}

func TestFilterExactDate(t *testing.T) {
	points := resolved(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC),
		time.Date(2024, 1, 1, 23, 59, 59, 999, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	)

	got := timewindow.ExactDate(timewindow.NewDate(2024, time.January, 1)).Filter(points)
	if len(got) != 2 || got[0].Point.Index != 0 || got[1].Point.Index != 2 {
		t.Fatalf("unexpected selection %+v", got)
	}

	if got := timewindow.AllTime.Filter(points); len(got) != len(points) {
		t.Fatalf("expected all %d points, got %d", len(points), len(got))
	}

	if got := timewindow.ExactDate(timewindow.NewDate(2024, time.January, 3)).Filter(points); len(got) != 0 {
		t.Fatalf("expected empty selection, got %d points", len(got))
	}
}

func TestFilterUsesTimestampLocation(t *testing.T) {
	toronto := time.FixedZone("EST", -5*60*60)
	// 2024-01-02 03:00 UTC is still 2024-01-01 in Toronto
	p := resolved(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC).In(toronto))

	if got := timewindow.ExactDate(timewindow.NewDate(2024, time.January, 1)).Filter(p); len(got) != 1 {
		t.Fatalf("expected point dated by its own location, got %d points", len(got))
	}
}

func TestDates(t *testing.T) {
	points := resolved(
		time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 2, 18, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC),
	)

	want := []timewindow.Date{
		timewindow.NewDate(2023, time.December, 31),
		timewindow.NewDate(2024, time.June, 30),
		timewindow.NewDate(2024, time.July, 2),
	}
	if got := timewindow.Dates(points); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestWindowComparable(t *testing.T) {
	a, _ := timewindow.ParseWindow("2024-01-01")
	b := timewindow.ExactDate(timewindow.NewDate(2024, time.January, 1))
	if a != b {
		t.Fatal("expected equal windows")
	}
	all, _ := timewindow.ParseWindow("all")
	if all != timewindow.AllTime {
		t.Fatal("expected AllTime")
	}
}
