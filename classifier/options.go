package classifier

import "log/slog"

type options struct {
	threads   int
	shardSize int
	progress  func(done int)
	logger    *slog.Logger
}

type Option interface {
	apply(*options)
}

func loadOptions(opts ...Option) options {
	options := options{
		threads:   defaultThreads(),
		shardSize: DefaultShardSize,
		logger:    slog.Default(),
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

// Default: GOMAXPROCS
func WithThreads(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.threads = n
		}
	})
}

// Default: 1024
func WithShardSize(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.shardSize = n
		}
	})
}

// WithProgress is called with the number of points classified so far, from a single goroutine.
func WithProgress(f func(done int)) Option {
	return optionFunc(func(o *options) {
		o.progress = f
	})
}

func WithLogger(log *slog.Logger) Option {
	return optionFunc(func(o *options) {
		if log != nil {
			o.logger = log
		}
	})
}
