package hclconfig

import (
	"time"

	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/place"
	"github.com/vk/gridmapper/internal/route"
)

// Options translates the placement block into engine options. Names of
// unknown strategies are reported as config errors.
func (s PlacementSettings) Options() ([]place.Option, error) {
	var opts []place.Option
	if s.Seed != nil {
		opts = append(opts, place.WithSeed(*s.Seed))
	}
	if s.MoveAttempts != nil {
		opts = append(opts, place.WithMoveAttempts(*s.MoveAttempts))
	}
	if s.InitialTemperature != nil {
		opts = append(opts, place.WithInitialTemperature(*s.InitialTemperature))
	}
	if s.MaxMoveRetries != nil {
		opts = append(opts, place.WithMaxMoveRetries(*s.MaxMoveRetries))
	}
	if s.MaxWarmTicks != nil {
		opts = append(opts, place.WithMaxWarmTicks(*s.MaxWarmTicks))
	}

	if s.MoveGenerator != nil {
		switch *s.MoveGenerator {
		case "cached":
			opts = append(opts, place.WithMoveGenerator(place.NewCachedMoveGenerator()))
		case "search":
			opts = append(opts, place.WithMoveGenerator(place.NewSearchMoveGenerator()))
		default:
			return nil, mapperr.NewConfigError("placement.move_generator", "unknown generator %q, want cached or search", *s.MoveGenerator)
		}
	}

	if s.WarmRatio != nil {
		opts = append(opts, place.WithWarmer(place.DefaultWarmer{TargetRatio: *s.WarmRatio}))
	}

	cooler := "default"
	if s.Cooler != nil {
		cooler = *s.Cooler
	}
	switch cooler {
	case "default":
	case "fixed":
		opts = append(opts, place.WithCooler(place.FixedCooler{Alpha: deref(s.CoolerAlpha)}))
	case "deviation":
		opts = append(opts, place.WithCooler(place.DeviationCooler{Lambda: deref(s.CoolerLambda)}))
	default:
		return nil, mapperr.NewConfigError("placement.cooler", "unknown cooler %q, want default, fixed or deviation", cooler)
	}

	if s.LimiterRatio != nil {
		opts = append(opts, place.WithLimiter(place.DefaultLimiter{TargetRatio: *s.LimiterRatio}))
	}

	var maxDuration time.Duration
	if s.MaxDuration != nil {
		d, err := time.ParseDuration(*s.MaxDuration)
		if err != nil || d < 0 {
			return nil, mapperr.NewConfigError("placement.max_duration", "invalid duration %q", *s.MaxDuration)
		}
		maxDuration = d
	}
	doner := "default"
	if s.Doner != nil {
		doner = *s.Doner
	}
	switch doner {
	case "default":
		if s.DoneEpsilon != nil || s.MaxTicks != nil || s.MaxDuration != nil {
			opts = append(opts, place.WithDoner(place.DefaultDoner{
				Epsilon:     deref(s.DoneEpsilon),
				MaxTicks:    deref(s.MaxTicks),
				MaxDuration: maxDuration,
			}))
		}
	case "deviation":
		if s.MaxDuration != nil {
			return nil, mapperr.NewConfigError("placement.max_duration", "is not supported by the deviation doner")
		}
		opts = append(opts, place.WithDoner(place.DeviationDoner{
			Tolerance: deref(s.DoneEpsilon),
			MaxTicks:  deref(s.MaxTicks),
		}))
	default:
		return nil, mapperr.NewConfigError("placement.doner", "unknown doner %q, want default or deviation", doner)
	}
	return opts, nil
}

// Options translates the routing block into router options.
func (s RoutingSettings) Options() []route.Option {
	var opts []route.Option
	if s.MaxIterations != nil {
		opts = append(opts, route.WithMaxIterations(*s.MaxIterations))
	}
	if s.PresentFactor != nil {
		f := *s.PresentFactor
		opts = append(opts, func(c *route.Config) { c.PresentFactor = f })
	}
	if s.PresentGrowth != nil {
		g := *s.PresentGrowth
		opts = append(opts, func(c *route.Config) { c.PresentGrowth = g })
	}
	if s.HistoryFactor != nil {
		opts = append(opts, route.WithHistoryFactor(*s.HistoryFactor))
	}
	if s.Batched != nil && *s.Batched {
		opts = append(opts, route.WithBatched(deref(s.Workers)))
	}
	return opts
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
