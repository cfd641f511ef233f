package classifier_test

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fogleman/poissondisc"
	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/bordertree"
	"github.com/royalcat/rgeocount/classifier"
	"github.com/royalcat/rgeocount/geomodel"
)

func square(minX, minY, maxX, maxY float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

func twoRegions() *bordertree.BorderTree[string] {
	bt := bordertree.NewBorderTree[string](bordertree.DefaultEpsilon)
	bt.InsertBorder("A", square(0, 0, 1, 1))
	bt.InsertBorder("B", square(1, 0, 2, 1))
	return bt
}

func points(coords ...orb.Point) []geomodel.PointRecord {
	day := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]geomodel.PointRecord, len(coords))
	for i, c := range coords {
		out[i] = geomodel.PointRecord{Index: i, Point: c, Timestamp: day}
	}
	return out
}

func TestClassify(t *testing.T) {
	c := classifier.New(twoRegions())

	tests := []struct {
		point    orb.Point
		relation geomodel.Relation
		regions  []string
	}{
		{orb.Point{0.5, 0.5}, geomodel.Within, []string{"A"}},
		{orb.Point{1.5, 0.5}, geomodel.Within, []string{"B"}},
		{orb.Point{1, 0.5}, geomodel.OnBoundary, []string{"A", "B"}},
		{orb.Point{0, 0.5}, geomodel.OnBoundary, []string{"A"}},
		{orb.Point{5, 5}, geomodel.Outside, nil},
	}

	for _, tt := range tests {
		cl, err := c.ClassifyPoint(geomodel.PointRecord{Point: tt.point})
		if err != nil {
			t.Fatalf("ClassifyPoint(%v): %v", tt.point, err)
		}
		if cl.Relation != tt.relation {
			t.Errorf("ClassifyPoint(%v) relation = %s, want %s", tt.point, cl.Relation, tt.relation)
		}
		if !slices.Equal(cl.Regions, tt.regions) {
			t.Errorf("ClassifyPoint(%v) regions = %v, want %v", tt.point, cl.Regions, tt.regions)
		}
	}
}

func TestClassifyPartition(t *testing.T) {
	pts := points(
		orb.Point{0.5, 0.5}, orb.Point{1, 0.5}, orb.Point{5, 5},
		orb.Point{1.2, 0.1}, orb.Point{2, 1}, orb.Point{-1, 0},
	)
	c := classifier.New(twoRegions(), classifier.WithShardSize(2))

	cls, err := c.Classify(context.Background(), pts)
	if err != nil {
		t.Fatal(err)
	}
	if len(cls) != len(pts) {
		t.Fatalf("expected %d classifications, got %d", len(pts), len(cls))
	}

	s := classifier.Summarize(cls)
	if s.Total() != len(pts) {
		t.Fatalf("summary %s does not add up to %d", s, len(pts))
	}
	if s.Within != 2 || s.OnBoundary != 2 || s.Outside != 2 {
		t.Fatalf("unexpected summary %s", s)
	}
	for i, cl := range cls {
		if cl.Point != i {
			t.Fatalf("classification %d refers to point %d", i, cl.Point)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	var coords []orb.Point
	for x := -0.5; x <= 2.5; x += 0.25 {
		for y := -0.5; y <= 1.5; y += 0.25 {
			coords = append(coords, orb.Point{x, y})
		}
	}
	pts := points(coords...)

	sequential, err := classifier.New(twoRegions(), classifier.WithThreads(1)).Classify(context.Background(), pts)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := classifier.New(twoRegions(), classifier.WithThreads(8), classifier.WithShardSize(3)).Classify(context.Background(), pts)
	if err != nil {
		t.Fatal(err)
	}

	for i := range sequential {
		if sequential[i].Relation != parallel[i].Relation || !slices.Equal(sequential[i].Regions, parallel[i].Regions) {
			t.Fatalf("point %d: sequential %+v, parallel %+v", i, sequential[i], parallel[i])
		}
	}
}

func TestClassifyIntegrityViolation(t *testing.T) {
	bt := bordertree.NewBorderTree[string](bordertree.DefaultEpsilon)
	bt.InsertBorder("A", square(0, 0, 2, 2))
	bt.InsertBorder("B", square(1, 1, 3, 3))

	pts := points(orb.Point{0.5, 0.5}, orb.Point{5, 5}, orb.Point{1.5, 1.5}, orb.Point{1.8, 1.8})
	pts[2].ID = "order-17"

	c := classifier.New(bt, classifier.WithShardSize(1), classifier.WithThreads(4))
	cls, err := c.Classify(context.Background(), pts)
	if cls != nil {
		t.Fatalf("expected no classifications, got %v", cls)
	}

	var violation *geomodel.IntegrityViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected IntegrityViolationError, got %v", err)
	}
	if violation.Point.ID != "order-17" {
		t.Fatalf("expected first offending point order-17, got %s", violation.Point.Key())
	}
	if !slices.Equal(violation.Regions, []string{"A", "B"}) {
		t.Fatalf("expected regions [A B], got %v", violation.Regions)
	}
}

func TestClassifyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := classifier.New(twoRegions()).Classify(ctx, points(orb.Point{0.5, 0.5}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassifyProgress(t *testing.T) {
	pts := points(orb.Point{0.5, 0.5}, orb.Point{1, 0.5}, orb.Point{5, 5}, orb.Point{1.5, 0.5}, orb.Point{0.1, 0.1})

	last := 0
	c := classifier.New(twoRegions(), classifier.WithShardSize(2), classifier.WithProgress(func(done int) {
		if done < last {
			t.Errorf("progress went backwards: %d after %d", done, last)
		}
		last = done
	}))
	if _, err := c.Classify(context.Background(), pts); err != nil {
		t.Fatal(err)
	}
	if last != len(pts) {
		t.Fatalf("expected final progress %d, got %d", len(pts), last)
	}
}

type countingIndex struct {
	classifier.Index
	calls atomic.Int64
}

func (c *countingIndex) Locate(point orb.Point) (within, touching []string) {
	c.calls.Add(1)
	return c.Index.Locate(point)
}

func TestClassifySingleQueryPerPoint(t *testing.T) {
	pts := points(orb.Point{0.5, 0.5}, orb.Point{1, 0.5}, orb.Point{5, 5}, orb.Point{1.5, 0.5})

	index := &countingIndex{Index: twoRegions()}
	if _, err := classifier.New(index, classifier.WithShardSize(1)).Classify(context.Background(), pts); err != nil {
		t.Fatal(err)
	}
	if got := index.calls.Load(); got != int64(len(pts)) {
		t.Fatalf("expected %d index queries, got %d", len(pts), got)
	}
}

func BenchmarkClassify(b *testing.B) {
	bt := bordertree.NewBorderTree[string](bordertree.DefaultEpsilon)
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			bt.InsertBorder(string(rune('a'+x))+string(rune('a'+y)), square(float64(x), float64(y), float64(x+1), float64(y+1)))
		}
	}

	samples := poissondisc.Sample(-1, -1, 11, 11, 0.02, 10, nil)
	coords := make([]orb.Point, len(samples))
	for i, s := range samples {
		coords[i] = orb.Point{s.X, s.Y}
	}
	pts := points(coords...)
	c := classifier.New(bt)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Classify(context.Background(), pts); err != nil {
			b.Fatal(err)
		}
	}
}
