package place

import (
	"math"

	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/observe"
)

// Defaults for the numeric Config fields.
const (
	DefaultMoveAttempts       = 20000
	DefaultInitialTemperature = 1.0
	DefaultMaxMoveRetries     = 32
	DefaultMaxWarmTicks       = 64
)

// Config controls one annealing run. Zero fields take their defaults.
type Config struct {
	// Seed of the run's generator. Nil draws a fresh seed.
	Seed               *uint64
	MoveAttempts       int
	InitialTemperature float64
	MaxMoveRetries     int
	MaxWarmTicks       int
	// Resume continues from a saved state instead of a fresh placement. The
	// Map must already hold the placement that state was taken from.
	Resume *SAState

	MoveGenerator MoveGenerator
	Warmer        Warmer
	Cooler        Cooler
	Limiter       Limiter
	Doner         Doner
	Observer      observe.Observer
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

// WithSeed fixes the generator seed so runs are reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = &seed }
}

// WithMoveAttempts sets the number of move attempts per tick.
func WithMoveAttempts(n int) Option {
	return func(c *Config) { c.MoveAttempts = n }
}

// WithInitialTemperature sets the starting temperature of a fresh run.
func WithInitialTemperature(t float64) Option {
	return func(c *Config) { c.InitialTemperature = t }
}

// WithMaxMoveRetries sets how many draws one attempt may make before it
// counts as a stall.
func WithMaxMoveRetries(n int) Option {
	return func(c *Config) { c.MaxMoveRetries = n }
}

// WithMaxWarmTicks caps the number of warm-up ticks.
func WithMaxWarmTicks(n int) Option {
	return func(c *Config) { c.MaxWarmTicks = n }
}

// WithResume continues annealing from a saved state.
func WithResume(s *SAState) Option {
	return func(c *Config) { c.Resume = s }
}

// WithMoveGenerator selects how moves are drawn.
func WithMoveGenerator(g MoveGenerator) Option {
	return func(c *Config) { c.MoveGenerator = g }
}

// WithWarmer replaces the warm-up policy.
func WithWarmer(w Warmer) Option {
	return func(c *Config) { c.Warmer = w }
}

// WithCooler replaces the cooling policy.
func WithCooler(co Cooler) Option {
	return func(c *Config) { c.Cooler = co }
}

// WithLimiter replaces the move-distance limit policy.
func WithLimiter(l Limiter) Option {
	return func(c *Config) { c.Limiter = l }
}

// WithDoner replaces the stopping policy.
func WithDoner(d Doner) Option {
	return func(c *Config) { c.Doner = d }
}

// WithObserver receives a report after every tick.
func WithObserver(o observe.Observer) Option {
	return func(c *Config) { c.Observer = o }
}

// withDefaults fills unset fields. Negative numbers are left alone so
// Validate can reject them.
func (c Config) withDefaults() Config {
	if c.MoveAttempts == 0 {
		c.MoveAttempts = DefaultMoveAttempts
	}
	if c.InitialTemperature == 0 {
		c.InitialTemperature = DefaultInitialTemperature
	}
	if c.MaxMoveRetries == 0 {
		c.MaxMoveRetries = DefaultMaxMoveRetries
	}
	if c.MaxWarmTicks == 0 {
		c.MaxWarmTicks = DefaultMaxWarmTicks
	}
	if c.MoveGenerator == nil {
		c.MoveGenerator = NewCachedMoveGenerator()
	}
	if c.Warmer == nil {
		c.Warmer = DefaultWarmer{}
	}
	if c.Cooler == nil {
		c.Cooler = DefaultCooler{}
	}
	if c.Limiter == nil {
		c.Limiter = DefaultLimiter{}
	}
	if c.Doner == nil {
		c.Doner = DefaultDoner{}
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
	case c.MoveAttempts <= 0:
		return mapperr.NewConfigError("move_attempts", "must be > 0, got %d", c.MoveAttempts)
	case !(c.InitialTemperature > 0) || math.IsInf(c.InitialTemperature, 1):
		return mapperr.NewConfigError("initial_temperature", "must be a finite value > 0, got %g", c.InitialTemperature)
	case c.MaxMoveRetries <= 0:
		return mapperr.NewConfigError("max_move_retries", "must be > 0, got %d", c.MaxMoveRetries)
	case c.MaxWarmTicks <= 0:
		return mapperr.NewConfigError("max_warm_ticks", "must be > 0, got %d", c.MaxWarmTicks)
	case c.MoveGenerator == nil:
		return mapperr.NewConfigError("move_generator", "is required")
	case c.Warmer == nil, c.Cooler == nil, c.Limiter == nil, c.Doner == nil:
		return mapperr.NewConfigError("schedule", "warmer, cooler, limiter and doner are all required")
	}
	if r := c.Resume; r != nil {
		if r.Limit < 0 {
			return mapperr.NewConfigError("resume.limit", "must be >= 0, got %g", r.Limit)
		}
		if !(r.Temperature > 0) {
			return mapperr.NewConfigError("resume.temperature", "must be > 0, got %g", r.Temperature)
		}
	}
	return nil
}
