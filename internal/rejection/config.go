package rejection

import (
	"github.com/samcharles93/specdec/internal/backend"
	"github.com/samcharles93/specdec/internal/draft"
	"github.com/samcharles93/specdec/internal/logger"
	"github.com/samcharles93/specdec/internal/metrics"
	"github.com/samcharles93/specdec/internal/tensor"
)

// Config configures a Sampler. Zero fields take their defaults.
type Config struct {
	// MaxNumTokens bounds batch_size*max_spec_len (staging capacity).
	MaxNumTokens int
	// Workers bounds concurrent kernel tasks; 0 means GOMAXPROCS.
	Workers int
	// Seed seeds the shared default random source; 0 seeds from the clock.
	Seed uint64
	// ResidualFloor replaces non-positive residual mass when draft
	// probabilities are supplied. 0 means the smallest normal float32.
	ResidualFloor float32
	// Backend names the execution backend (auto, cpu).
	Backend string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		MaxNumTokens:  draft.DefaultMaxNumTokens,
		ResidualFloor: tensor.SmallestNormalFloat32,
		Backend:       backend.Auto,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxNumTokens <= 0 {
		c.MaxNumTokens = d.MaxNumTokens
	}
	if c.ResidualFloor <= 0 {
		c.ResidualFloor = d.ResidualFloor
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	return c
}

// Option customises a Sampler beyond its Config.
type Option func(*options)

type options struct {
	log     logger.Logger
	metrics *metrics.Recorder
	backend backend.Backend
}

// WithLogger sets the logger. The default writes to stderr at info level.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics records every call on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithBackend overrides the backend named by Config.Backend.
func WithBackend(b backend.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}
