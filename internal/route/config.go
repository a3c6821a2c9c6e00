package route

import (
	"runtime"

	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/observe"
)

const (
	DefaultMaxIterations = 50
	DefaultPresentFactor = 0.5
	DefaultPresentGrowth = 1.5
	DefaultHistoryFactor = 1.0
)

// Config controls one routing run. Zero fields take their defaults.
type Config struct {
	MaxIterations int
	// PresentFactor is the initial weight of present congestion. It is
	// multiplied by PresentGrowth after every pass that leaves congestion.
	PresentFactor float64
	PresentGrowth float64
	// HistoryFactor scales how much each pass's overuse adds to the history
	// cost of an element.
	HistoryFactor float64
	// Batched routes all channels of a pass against one frozen cost snapshot
	// on up to Workers goroutines and commits in channel order afterwards.
	Batched  bool
	Workers  int
	Observer observe.Observer
}

// Option mutates a Config.
type Option func(*Config)

// NewConfig applies opts over the zero Config.
func NewConfig(opts ...Option) Config {
	var c Config
	for _, o := range opts {
		o(&c)
	}
	return c
}

// WithMaxIterations caps the number of Pathfinder passes.
func WithMaxIterations(n int) Option {
	return func(c *Config) { c.MaxIterations = n }
}

// WithPresentFactor sets the first-pass present-congestion factor and its
// per-pass growth.
func WithPresentFactor(initial, growth float64) Option {
	return func(c *Config) {
		c.PresentFactor = initial
		c.PresentGrowth = growth
	}
}

// WithHistoryFactor scales the accumulated history cost.
func WithHistoryFactor(f float64) Option {
	return func(c *Config) { c.HistoryFactor = f }
}

// WithBatched enables the batched variant with the given worker bound; zero
// workers means GOMAXPROCS.
func WithBatched(workers int) Option {
	return func(c *Config) {
		c.Batched = true
		c.Workers = workers
	}
}

// WithObserver receives a report after every pass.
func WithObserver(o observe.Observer) Option {
	return func(c *Config) { c.Observer = o }
}

func (c Config) withDefaults() Config {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.PresentFactor == 0 {
		c.PresentFactor = DefaultPresentFactor
	}
	if c.PresentGrowth == 0 {
		c.PresentGrowth = DefaultPresentGrowth
	}
	if c.HistoryFactor == 0 {
		c.HistoryFactor = DefaultHistoryFactor
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Observer == nil {
		c.Observer = observe.Nop{}
	}
	return c
}

// Validate checks c after filling its defaults.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.MaxIterations <= 0:
		return mapperr.NewConfigError("max_iterations", "must be > 0, got %d", c.MaxIterations)
	case c.PresentFactor < 0:
		return mapperr.NewConfigError("present_factor", "must be >= 0, got %g", c.PresentFactor)
	case c.PresentGrowth < 1:
		return mapperr.NewConfigError("present_growth", "must be >= 1, got %g", c.PresentGrowth)
	case c.HistoryFactor < 0:
		return mapperr.NewConfigError("history_factor", "must be >= 0, got %g", c.HistoryFactor)
	case c.Workers < 0:
		return mapperr.NewConfigError("workers", "must be >= 0, got %d", c.Workers)
	}
	return nil
}
