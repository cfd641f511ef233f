package pipeline

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/royalcat/rgeocount/bordertree"
	"github.com/royalcat/rgeocount/boundary"
	"github.com/royalcat/rgeocount/classifier"
)

// Index is a region index the pipeline can fill and query.
type Index interface {
	classifier.Index
	InsertBorder(regionID string, b orb.MultiPolygon)
}

type IndexFactory func(eps float64) Index

// TreeIndex is the default index, backed by a quad tree.
func TreeIndex(eps float64) Index {
	return bordertree.NewBorderTree[string](eps)
}

// ScanIndex checks every region for every point.
func ScanIndex(eps float64) Index {
	return bordertree.NewScan[string](eps)
}

type options struct {
	logger   *slog.Logger
	keep     boundary.KeepPolicy
	assign   boundary.AssignPolicy
	index    IndexFactory
	progress func(done int)
}

type Option interface {
	apply(*options)
}

func loadOptions(opts ...Option) options {
	options := options{
		logger: slog.Default(),
		keep:   boundary.KeepFirst,
		assign: boundary.AssignFirst,
		index:  TreeIndex,
	}
	for _, o := range opts {
		o.apply(&options)
	}
	return options
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

func WithLogger(log *slog.Logger) Option {
	return optionFunc(func(o *options) {
		if log != nil {
			o.logger = log
		}
	})
}

// Default: boundary.KeepFirst
func WithKeepPolicy(keep boundary.KeepPolicy) Option {
	return optionFunc(func(o *options) {
		if keep != nil {
			o.keep = keep
		}
	})
}

// Default: boundary.AssignFirst
func WithAssignPolicy(assign boundary.AssignPolicy) Option {
	return optionFunc(func(o *options) {
		if assign != nil {
			o.assign = assign
		}
	})
}

// Default: TreeIndex
func WithIndex(factory IndexFactory) Option {
	return optionFunc(func(o *options) {
		if factory != nil {
			o.index = factory
		}
	})
}

func WithProgress(f func(done int)) Option {
	return optionFunc(func(o *options) {
		o.progress = f
	})
}
