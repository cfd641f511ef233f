package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/pipeline"
	"github.com/royalcat/rgeocount/server"
	"github.com/valyala/fasthttp"
)

func square(minX, minY, maxX, maxY float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

func newServer(t testing.TB) *server.Server {
	t.Helper()

	p, err := pipeline.New([]geomodel.Region{
		{ID: "A", Geometry: square(0, 0, 1, 1)},
		{ID: "B", Geometry: square(1, 0, 2, 1)},
	}, pipeline.ConfigDefault())
	if err != nil {
		t.Fatal(err)
	}

	day := func(d int) time.Time { return time.Date(2024, 7, d, 12, 0, 0, 0, time.UTC) }
	classified, err := p.Classify(context.Background(), []geomodel.PointRecord{
		{Index: 0, Point: orb.Point{0.5, 0.5}, Timestamp: day(30)},
		{Index: 1, Point: orb.Point{1.5, 0.5}, Timestamp: day(30)},
		{Index: 2, Point: orb.Point{1.5, 0.5}, Timestamp: day(31)},
		{Index: 3, Point: orb.Point{5, 5}, Timestamp: day(31)},
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := server.New(classified)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func get(handler fasthttp.RequestHandler, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(http.MethodGet)
	req.SetRequestURI(uri)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	handler(ctx)
	return ctx
}

type countsBody struct {
	Window string `json:"window"`
	Counts []struct {
		RegionID string `json:"region_id"`
		Count    int    `json:"order_count"`
	} `json:"counts"`
	Diagnostics struct {
		Outside int  `json:"outside"`
		Empty   bool `json:"empty"`
	} `json:"diagnostics"`
}

func TestCounts(t *testing.T) {
	handler := newServer(t).Handler()

	cases := []struct {
		uri    string
		window string
		a, b   int
		empty  bool
	}{
		{"/counts", "all time", 1, 2, false},
		{"/counts/2024-07-30", "2024-07-30", 1, 1, false},
		{"/counts?date=2024-07-31", "2024-07-31", 0, 1, false},
		{"/counts/2024-08-01", "2024-08-01", 0, 0, true},
		// cached
		{"/counts/2024-07-30", "2024-07-30", 1, 1, false},
	}
	for _, c := range cases {
		ctx := get(handler, c.uri)
		if ctx.Response.StatusCode() != http.StatusOK {
			t.Fatalf("%s: status %d", c.uri, ctx.Response.StatusCode())
		}

		var body countsBody
		if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
			t.Fatalf("%s: %v", c.uri, err)
		}
		if body.Window != c.window || len(body.Counts) != 2 {
			t.Fatalf("%s: unexpected body %+v", c.uri, body)
		}
		if body.Counts[0].Count != c.a || body.Counts[1].Count != c.b {
			t.Fatalf("%s: expected A=%d B=%d, got %+v", c.uri, c.a, c.b, body.Counts)
		}
		if body.Diagnostics.Empty != c.empty || body.Diagnostics.Outside != 1 {
			t.Fatalf("%s: unexpected diagnostics %+v", c.uri, body.Diagnostics)
		}
	}
}

func TestCountsBadDate(t *testing.T) {
	handler := newServer(t).Handler()

	for _, uri := range []string{"/counts/2024-13-01", "/counts?date=yesterday"} {
		ctx := get(handler, uri)
		if ctx.Response.StatusCode() != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", uri, ctx.Response.StatusCode())
		}
	}
}

func TestDatesAndOutside(t *testing.T) {
	handler := newServer(t).Handler()

	var dates []string
	if err := json.Unmarshal(get(handler, "/dates").Response.Body(), &dates); err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 || dates[0] != "2024-07-30" || dates[1] != "2024-07-31" {
		t.Fatalf("unexpected dates %v", dates)
	}

	var outside [][2]float64
	if err := json.Unmarshal(get(handler, "/outside").Response.Body(), &outside); err != nil {
		t.Fatal(err)
	}
	if len(outside) != 1 || outside[0] != [2]float64{5, 5} {
		t.Fatalf("unexpected outside points %v", outside)
	}
}

func BenchmarkCountsHandler(b *testing.B) {
	handler := newServer(b).Handler()

	for b.Loop() {
		get(handler, "/counts/2024-07-30")
	}
}
