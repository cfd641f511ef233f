// Package pipeline runs the region count pass: classify points against the
// region set, resolve boundary points, filter by time window, count per region
// and zero fill the table.
//
// A Pipeline is built once per region set and holds no per-run state, so
// several runs, e.g. for different dates, may execute concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/royalcat/rgeocount/boundary"
	"github.com/royalcat/rgeocount/classifier"
	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/tally"
	"github.com/royalcat/rgeocount/timewindow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("github.com/royalcat/rgeocount/pipeline")
	meter  = otel.Meter("github.com/royalcat/rgeocount/pipeline")
)

type Pipeline struct {
	regions []geomodel.Region
	byID    map[string]int

	classifier *classifier.Classifier
	resolver   *boundary.Resolver

	log     *slog.Logger
	metrics metrics
}

type metrics struct {
	pointsClassified  metric.Int64Counter
	duplicatesDropped metric.Int64Counter
	runs              metric.Int64Counter
}

// New validates the region set and builds its index.
func New(regions []geomodel.Region, cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := loadOptions(opts...)
	log := options.logger.With("component", "pipeline")

	byID := make(map[string]int, len(regions))
	index := options.index(cfg.Epsilon)
	for i, r := range regions {
		if r.ID == "" {
			return nil, fmt.Errorf("region %d has an empty id", i)
		}
		if _, ok := byID[r.ID]; ok {
			return nil, &geomodel.DuplicateRegionError{RegionID: r.ID}
		}
		if len(r.Geometry) == 0 {
			return nil, fmt.Errorf("region %q has no geometry", r.ID)
		}
		byID[r.ID] = i
		index.InsertBorder(r.ID, r.Geometry)
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	log.Info("Region index built", "regions", len(regions), "epsilon", cfg.Epsilon)

	return &Pipeline{
		regions: regions,
		byID:    byID,
		classifier: classifier.New(index,
			classifier.WithThreads(cfg.Threads),
			classifier.WithShardSize(cfg.ShardSize),
			classifier.WithProgress(options.progress),
			classifier.WithLogger(log),
		),
		resolver: boundary.NewResolver(options.keep, options.assign),
		log:      log,
		metrics:  m,
	}, nil
}

func newMetrics() (metrics, error) {
	var m metrics
	var err error
	m.pointsClassified, err = meter.Int64Counter("points_classified_total")
	if err != nil {
		return m, err
	}
	m.duplicatesDropped, err = meter.Int64Counter("boundary_duplicates_dropped_total")
	if err != nil {
		return m, err
	}
	m.runs, err = meter.Int64Counter("runs_total")
	if err != nil {
		return m, err
	}
	return m, nil
}

func (p *Pipeline) Regions() []geomodel.Region {
	return p.regions
}

// Run classifies points and counts them for window in a single pass.
func (p *Pipeline) Run(ctx context.Context, points []geomodel.PointRecord, window timewindow.Window) (*Result, error) {
	classified, err := p.Classify(ctx, points)
	if err != nil {
		return nil, err
	}
	return classified.Count(ctx, window)
}

// Classify classifies points and resolves boundary points. The result does not
// depend on a time window and can be counted for any number of windows.
// points should carry their input position in Index.
func (p *Pipeline) Classify(ctx context.Context, points []geomodel.PointRecord) (*Classified, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Classify", trace.WithAttributes(attribute.Int("points", len(points))))
	defer span.End()

	cls, err := p.classifier.Classify(ctx, points)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("classify points: %w", err))
	}

	summary := classifier.Summarize(cls)
	p.metrics.pointsClassified.Add(ctx, int64(summary.Within), metric.WithAttributes(attribute.String("relation", geomodel.Within.String())))
	p.metrics.pointsClassified.Add(ctx, int64(summary.OnBoundary), metric.WithAttributes(attribute.String("relation", geomodel.OnBoundary.String())))
	p.metrics.pointsClassified.Add(ctx, int64(summary.Outside), metric.WithAttributes(attribute.String("relation", geomodel.Outside.String())))

	resolved := make([]geomodel.ResolvedPoint, 0, summary.Within+summary.OnBoundary)
	candidates := make([]boundary.Candidate, 0, summary.OnBoundary)
	outside := make([]geomodel.PointRecord, 0, summary.Outside)
	load := boundary.Load{}
	for _, cl := range cls {
		point := points[cl.Point]
		switch cl.Relation {
		case geomodel.Within:
			resolved = append(resolved, geomodel.ResolvedPoint{Point: point, RegionID: cl.Regions[0]})
			load[cl.Regions[0]]++
		case geomodel.OnBoundary:
			candidates = append(candidates, boundary.Candidate{Point: point, Regions: cl.Regions})
		default:
			outside = append(outside, point)
		}
	}

	_, resolveSpan := tracer.Start(ctx, "pipeline.ResolveBoundaries", trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	res, err := p.resolver.Resolve(candidates, load)
	resolveSpan.End()
	if err != nil {
		return nil, spanError(span, fmt.Errorf("resolve boundary points: %w", err))
	}
	p.metrics.duplicatesDropped.Add(ctx, int64(res.Dropped))
	resolved = append(resolved, res.Points...)

	for i := range resolved {
		if _, ok := p.byID[resolved[i].RegionID]; !ok {
			return nil, spanError(span, &geomodel.UnknownRegionError{RegionID: resolved[i].RegionID, Point: &resolved[i].Point})
		}
	}

	p.log.Info("Points classified",
		"points", len(points),
		"within", summary.Within,
		"on_boundary", summary.OnBoundary,
		"outside", summary.Outside,
		"dropped_duplicates", res.Dropped,
	)

	return &Classified{
		pipeline:          p,
		Classifications:   cls,
		Resolved:          resolved,
		Outside:           outside,
		Summary:           summary,
		DroppedDuplicates: res.Dropped,
	}, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// IsAbort reports whether err is one of the integrity errors that abort a run.
func IsAbort(err error) bool {
	var violation *geomodel.IntegrityViolationError
	var unknown *geomodel.UnknownRegionError
	return errors.As(err, &violation) || errors.As(err, &unknown)
}

// Classified is the window independent part of a run.
type Classified struct {
	pipeline *Pipeline

	Classifications []geomodel.Classification
	// Resolved holds WITHIN points followed by the resolved boundary points.
	Resolved          []geomodel.ResolvedPoint
	Outside           []geomodel.PointRecord
	Summary           classifier.Summary
	DroppedDuplicates int
}

// Dates lists the dates that have in-region points.
func (c *Classified) Dates() []timewindow.Date {
	return timewindow.Dates(c.Resolved)
}

// Count filters resolved points by window and returns the zero filled table.
// An empty selection is not an error, it is reported in Diagnostics.
func (c *Classified) Count(ctx context.Context, window timewindow.Window) (*Result, error) {
	p := c.pipeline
	ctx, span := tracer.Start(ctx, "pipeline.Count", trace.WithAttributes(attribute.String("window", window.String())))
	defer span.End()

	selected := window.Filter(c.Resolved)
	counts, err := tally.Assemble(p.regions, tally.Aggregate(selected))
	if err != nil {
		return nil, spanError(span, fmt.Errorf("assemble region counts: %w", err))
	}
	p.metrics.runs.Add(ctx, 1)

	diag := Diagnostics{
		Points:            c.Summary.Total(),
		Within:            c.Summary.Within,
		OnBoundary:        c.Summary.OnBoundary,
		Outside:           c.Summary.Outside,
		DroppedDuplicates: c.DroppedDuplicates,
		Resolved:          len(c.Resolved),
		Selected:          len(selected),
	}
	if len(selected) == 0 {
		diag.Empty = true
		if d, ok := window.Date(); ok {
			diag.EmptyDate = &d
		}
		p.log.WarnContext(ctx, "No data for window", "window", window.String())
	}

	return &Result{
		Window:      window,
		Counts:      counts,
		Diagnostics: diag,
	}, nil
}

type Result struct {
	Window      timewindow.Window
	Counts      []geomodel.RegionCount
	Diagnostics Diagnostics
}

type Diagnostics struct {
	Points            int
	Within            int
	OnBoundary        int
	Outside           int
	DroppedDuplicates int
	// Resolved is the number of in-region points before the window filter.
	Resolved int
	Selected int
	Empty    bool
	// EmptyDate is the requested date when an exact date selected nothing.
	EmptyDate *timewindow.Date
}
