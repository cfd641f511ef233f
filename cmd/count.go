package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/royalcat/rgeocount/boundary"
	"github.com/royalcat/rgeocount/geomodel"
	"github.com/royalcat/rgeocount/internal/stats"
	"github.com/royalcat/rgeocount/loader"
	"github.com/royalcat/rgeocount/pipeline"
	"github.com/royalcat/rgeocount/report"
	"github.com/royalcat/rgeocount/server"
	"github.com/royalcat/rgeocount/timewindow"
	"github.com/urfave/cli/v3"
)

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      "regions",
			Aliases:   []string{"r"},
			Required:  true,
			TakesFile: true,
			Usage:     "GeoJSON region boundaries, .zst compressed files are accepted",
		},
		&cli.StringFlag{
			Name:      "orders",
			Aliases:   []string{"o"},
			Required:  true,
			TakesFile: true,
			Usage:     "CSV order records, .zst compressed files are accepted",
		},
		&cli.StringFlag{
			Name:  "id-property",
			Value: loader.DefaultIDProperty,
			Usage: "feature property holding the region id",
		},
		&cli.StringFlag{
			Name:  "timezone",
			Value: "UTC",
			Usage: "IANA zone for timestamps without an offset, when set all order dates are taken in it",
		},
		&cli.IntFlag{
			Name:        "threads",
			Aliases:     []string{"t"},
			DefaultText: "max",
		},
		&cli.Float64Flag{
			Name:  "epsilon",
			Value: pipeline.ConfigDefault().Epsilon,
			Usage: "distance under which an order is on a region boundary",
		},
		&cli.StringFlag{
			Name:  "keep",
			Value: "first",
			Usage: "which duplicate of a boundary order survives: first, earliest or latest",
		},
		&cli.StringFlag{
			Name:  "assign",
			Value: "first",
			Usage: "which touching region gets a boundary order: first or least-loaded",
		},
	}
}

type run struct {
	pipeline   *pipeline.Pipeline
	classified *pipeline.Classified
}

// classify loads both inputs and classifies every order once.
// mark may be nil.
func classify(ctx *cli.Context, mark func(string), progress bool) (*run, error) {
	log := slog.Default()
	if mark == nil {
		mark = func(string) {}
	}

	keep, err := boundary.ParseKeepPolicy(ctx.String("keep"))
	if err != nil {
		return nil, err
	}
	assign, err := boundary.ParseAssignPolicy(ctx.String("assign"))
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(ctx.String("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	regions, err := loader.LoadRegions(ctx.String("regions"), ctx.String("id-property"))
	if err != nil {
		return nil, err
	}
	mark("load regions")
	log.Info("Regions loaded", "count", len(regions))

	pointsCfg := loader.PointsConfigDefault()
	pointsCfg.Location = loc
	pointsCfg.Convert = ctx.IsSet("timezone")
	points, err := loader.LoadPoints(ctx.String("orders"), pointsCfg)
	if err != nil {
		return nil, err
	}
	mark("load orders")
	log.Info("Orders loaded", "count", len(points))

	cfg := pipeline.ConfigDefault()
	if threads := ctx.Int("threads"); threads > 0 {
		cfg.Threads = threads
	}
	cfg.Epsilon = ctx.Float64("epsilon")

	opts := []pipeline.Option{
		pipeline.WithKeepPolicy(keep),
		pipeline.WithAssignPolicy(assign),
	}
	var bar *pb.ProgressBar
	if progress {
		bar = pb.StartNew(len(points))
		opts = append(opts, pipeline.WithProgress(func(done int) {
			bar.SetCurrent(int64(done))
		}))
	}

	p, err := pipeline.New(regions, cfg, opts...)
	if err != nil {
		return nil, err
	}
	mark("build index")

	classified, err := p.Classify(ctx.Context, points)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}
	mark("classify")

	return &run{pipeline: p, classified: classified}, nil
}

func count(ctx *cli.Context) error {
	window, err := timewindow.ParseWindow(ctx.String("date"))
	if err != nil {
		return err
	}
	format := ctx.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	stopProfiling, err := startProfiling(ctx)
	if err != nil {
		return err
	}
	defer stopProfiling()

	var collector *stats.Collector
	mark := func(string) {}
	if ctx.String("stats") != "" {
		collector, err = stats.NewCollector(100 * time.Millisecond)
		if err != nil {
			return err
		}
		collector.Start(ctx.Context)
		mark = collector.Mark
	}

	r, err := classify(ctx, mark, !ctx.Bool("no-progress"))
	if err != nil {
		return err
	}

	res, err := r.classified.Count(ctx.Context, window)
	if err != nil {
		return err
	}
	mark("count")

	out := io.Writer(os.Stdout)
	if name := ctx.String("out"); name != "" {
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	notice := io.Writer(os.Stderr)
	if format == "table" {
		notice = out
	}
	if err := writeResult(out, notice, format, r.pipeline.Regions(), res); err != nil {
		return err
	}

	if collector != nil {
		if err := collector.Stop().SaveToFile(ctx.String("stats")); err != nil {
			return err
		}
	}
	return nil
}

func checkFormat(format string) error {
	switch format {
	case "table", "csv", "json", "geojson":
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

// writeResult writes res in format to out. An empty date selection is announced
// on notice before the zero filled counts.
func writeResult(out, notice io.Writer, format string, regions []geomodel.Region, res *pipeline.Result) error {
	if res.Diagnostics.EmptyDate != nil {
		fmt.Fprintf(notice, "No data available for %s.\n", res.Diagnostics.EmptyDate)
	}

	switch format {
	case "table":
		return report.WriteTable(out, res.Counts)
	case "csv":
		return report.WriteCSV(out, res.Counts)
	case "json":
		return report.WriteJSON(out, res)
	case "geojson":
		return report.WriteGeoJSON(out, regions, res.Counts)
	}
	return checkFormat(format)
}

func dates(ctx *cli.Context) error {
	r, err := classify(ctx, nil, false)
	if err != nil {
		return err
	}
	for _, d := range r.classified.Dates() {
		fmt.Println(d)
	}
	return nil
}

func serve(ctx *cli.Context) error {
	slog.Info("Classifying orders")
	r, err := classify(ctx, nil, false)
	if err != nil {
		return err
	}

	s, err := server.New(r.classified)
	if err != nil {
		return err
	}
	return s.Run(ctx.Context, ctx.String("listen"))
}
