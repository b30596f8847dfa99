package recsplit

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	rserrors "github.com/tamirms/recsplit/errors"
)

const (
	// DefaultLeafSize balances build time against space; larger leaves
	// save space but the bijection search grows roughly like e^leaf.
	DefaultLeafSize = 8

	// DefaultAverageBucketSize is the target number of keys per bucket.
	DefaultAverageBucketSize = 100

	// DefaultMaxChunkSize bounds the keys encoded between two joins of the
	// worker pool.
	DefaultMaxChunkSize = 1 << 20
)

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

type buildConfig struct {
	leafSize          int
	averageBucketSize int
	maxChunkSize      int
	workers           int
	logger            *zap.Logger
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		leafSize:          DefaultLeafSize,
		averageBucketSize: DefaultAverageBucketSize,
		maxChunkSize:      DefaultMaxChunkSize,
		workers:           runtime.GOMAXPROCS(0),
		logger:            zap.NewNop(),
	}
}

func (c *buildConfig) validate() error {
	if c.maxChunkSize <= 0 {
		return fmt.Errorf("%w: got %d", rserrors.ErrInvalidChunkSize, c.maxChunkSize)
	}
	if c.workers <= 0 {
		return fmt.Errorf("%w: got %d", rserrors.ErrInvalidWorkers, c.workers)
	}
	return nil
}

// WithLeafSize sets the largest node solved by a direct bijection search,
// in [1, 25]. Evaluators must be built with the same value.
func WithLeafSize(n int) BuildOption {
	return func(c *buildConfig) {
		c.leafSize = n
	}
}

// WithAverageBucketSize sets the target keys per bucket, in [4, 65536].
// Evaluators must be built with the same value.
func WithAverageBucketSize(n int) BuildOption {
	return func(c *buildConfig) {
		c.averageBucketSize = n
	}
}

// WithMaxChunkSize sets how many keys are encoded per worker-pool round.
// Does not affect the output.
func WithMaxChunkSize(n int) BuildOption {
	return func(c *buildConfig) {
		c.maxChunkSize = n
	}
}

// WithWorkers sets the number of parallel bucket encoders.
// Does not affect the output.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) {
		c.workers = n
	}
}

// WithLogger sets the logger for build progress. A nil logger disables
// logging, which is also the default.
func WithLogger(l *zap.Logger) BuildOption {
	return func(c *buildConfig) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}
