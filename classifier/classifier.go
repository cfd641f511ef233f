package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/geomodel"
	"github.com/sourcegraph/conc/pool"
)

const DefaultShardSize = 1024

// Index is the spatial query capability the classifier needs. Locate returns
// the regions whose interior contains point and the regions whose boundary
// contains it, in one query. Results must be ordered deterministically,
// bordertree returns them in region order.
type Index interface {
	Locate(point orb.Point) (within, touching []string)
}

type Classifier struct {
	index     Index
	threads   int
	shardSize int
	progress  func(done int)
	log       *slog.Logger
}

func New(index Index, opts ...Option) *Classifier {
	options := loadOptions(opts...)
	return &Classifier{
		index:     index,
		threads:   options.threads,
		shardSize: options.shardSize,
		progress:  options.progress,
		log:       options.logger,
	}
}

// ClassifyPoint is a pure function of the point and the index.
func (c *Classifier) ClassifyPoint(p geomodel.PointRecord) (geomodel.Classification, error) {
	within, touching := c.index.Locate(p.Point)
	switch {
	case len(within) > 1:
		return geomodel.Classification{}, &geomodel.IntegrityViolationError{Point: p, Regions: within}
	case len(within) == 1:
		return geomodel.Classification{Point: p.Index, Relation: geomodel.Within, Regions: within}, nil
	}

	if len(touching) > 0 {
		return geomodel.Classification{Point: p.Index, Relation: geomodel.OnBoundary, Regions: touching}, nil
	}

	return geomodel.Classification{Point: p.Index, Relation: geomodel.Outside}, nil
}

// Classify classifies every point. The result is indexed like points.
// If any point is inside overlapping regions the violation for the lowest
// point position is returned and no classifications are.
func (c *Classifier) Classify(ctx context.Context, points []geomodel.PointRecord) ([]geomodel.Classification, error) {
	out := make([]geomodel.Classification, len(points))
	if len(points) == 0 {
		return out, nil
	}

	shards := (len(points) + c.shardSize - 1) / c.shardSize
	errs := make([]error, shards)
	done := make(chan int, shards)

	p := pool.New().WithMaxGoroutines(c.threads)
	for s := 0; s < shards; s++ {
		start := s * c.shardSize
		end := min(start+c.shardSize, len(points))

		p.Go(func() {
			defer func() { done <- end - start }()
			if err := ctx.Err(); err != nil {
				errs[s] = err
				return
			}
			for i := start; i < end; i++ {
				cl, err := c.ClassifyPoint(points[i])
				if err != nil {
					errs[s] = err
					return
				}
				cl.Point = i
				out[i] = cl
			}
		})
	}

	go func() {
		p.Wait()
		close(done)
	}()
	finished := 0
	for n := range done {
		finished += n
		if c.progress != nil {
			c.progress(finished)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.log.Debug("points classified", "points", len(points), "shards", shards, "threads", c.threads)
	return out, nil
}

// Summary counts classifications per relation.
type Summary struct {
	Within     int
	OnBoundary int
	Outside    int
}

func (s Summary) Total() int {
	return s.Within + s.OnBoundary + s.Outside
}

func Summarize(cls []geomodel.Classification) Summary {
	var s Summary
	for _, cl := range cls {
		switch cl.Relation {
		case geomodel.Within:
			s.Within++
		case geomodel.OnBoundary:
			s.OnBoundary++
		default:
			s.Outside++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("within=%d on_boundary=%d outside=%d", s.Within, s.OnBoundary, s.Outside)
}

func defaultThreads() int {
	return runtime.GOMAXPROCS(0)
}
