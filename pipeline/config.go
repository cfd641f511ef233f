package pipeline

import (
	"fmt"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/royalcat/rgeocount/bordertree"
	"github.com/royalcat/rgeocount/classifier"
)

type Config struct {
	// Threads used for classification, 0 means GOMAXPROCS.
	Threads int `validate:"gte=0"`
	// ShardSize is the number of points classified per task.
	ShardSize int `validate:"gte=0"`
	// Epsilon is the distance under which a point is on a region boundary.
	Epsilon float64 `validate:"gte=0"`
}

func ConfigDefault() Config {
	return Config{
		Threads:   runtime.GOMAXPROCS(-1),
		ShardSize: classifier.DefaultShardSize,
		Epsilon:   bordertree.DefaultEpsilon,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	return nil
}
