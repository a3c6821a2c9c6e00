package place

import (
	"math"
	"time"
)

// Warmer raises the temperature during warm-up. It reports true once the
// state is warm enough for annealing to start.
type Warmer interface {
	Warm(s *SAState) bool
}

// Cooler lowers the temperature after an annealing tick.
type Cooler interface {
	Cool(s *SAState)
}

// Limiter adjusts the move-distance limit after an annealing tick.
type Limiter interface {
	Limit(s *SAState)
}

// Doner decides when annealing stops.
type Doner interface {
	Done(s *SAState) bool
}

// Default policy constants. Zero-valued policy fields fall back to these.
const (
	DefaultWarmRatio      = 0.96
	DefaultWarmMultiplier = 2.0
	DefaultLimiterRatio   = 0.44
	DefaultDoneEpsilon    = 0.005
	DefaultFixedAlpha     = 0.95
	DefaultDeviationGain  = 0.7
)

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// DefaultWarmer multiplies the temperature until the acceptance ratio of a
// tick reaches TargetRatio.
type DefaultWarmer struct {
	TargetRatio float64
	Multiplier  float64
}

// Warm implements Warmer. A tick that generated no move cannot be warmed
// further and counts as warm.
func (w DefaultWarmer) Warm(s *SAState) bool {
	if s.TickMoves == 0 || s.AcceptanceRatio() >= orDefault(w.TargetRatio, DefaultWarmRatio) {
		return true
	}
	s.Temperature *= orDefault(w.Multiplier, DefaultWarmMultiplier)
	return false
}

// DefaultCooler picks the cooling factor from the last acceptance ratio:
// fast while nearly everything is accepted, slowest in the productive middle
// band, and a little faster again once the search has frozen.
type DefaultCooler struct{}

// Cool implements Cooler.
func (DefaultCooler) Cool(s *SAState) {
	r := s.AcceptanceRatio()
	var alpha float64
	switch {
	case r > 0.96:
		alpha = 0.5
	case r > 0.8:
		alpha = 0.9
	case r > 0.15:
		alpha = 0.95
	default:
		alpha = 0.8
	}
	s.Temperature *= alpha
}

// FixedCooler multiplies the temperature by Alpha every tick.
type FixedCooler struct {
	Alpha float64
}

// Cool implements Cooler.
func (c FixedCooler) Cool(s *SAState) {
	s.Temperature *= orDefault(c.Alpha, DefaultFixedAlpha)
}

// DeviationCooler cools by T' = T*exp(-Lambda*T/sigma) where sigma is the
// standard deviation of the objective over the last tick. A flat tick halves
// the temperature.
type DeviationCooler struct {
	Lambda float64
}

// Cool implements Cooler.
func (c DeviationCooler) Cool(s *SAState) {
	if s.Deviation <= 0 {
		s.Temperature *= 0.5
		return
	}
	f := math.Exp(-orDefault(c.Lambda, DefaultDeviationGain) * s.Temperature / s.Deviation)
	s.Temperature *= max(f, 0.5)
}

// DefaultLimiter scales the limit by 1-TargetRatio+ratio and clamps it to
// [1, MaxLimit].
type DefaultLimiter struct {
	TargetRatio float64
}

// Limit implements Limiter. A tick that generated no move doubles the limit
// so the next tick can reach a legal destination.
func (l DefaultLimiter) Limit(s *SAState) {
	if s.TickMoves == 0 {
		s.Limit = min(max(s.Limit*2, 1), max(s.MaxLimit, 1))
		return
	}
	next := s.Limit * (1 - orDefault(l.TargetRatio, DefaultLimiterRatio) + s.AcceptanceRatio())
	s.Limit = min(max(next, 1), max(s.MaxLimit, 1))
}

// DefaultDoner stops once the temperature is negligible relative to the
// average per-channel cost, once the objective reaches zero, or when the tick
// or wall-clock budget runs out. Zero budgets are unlimited.
type DefaultDoner struct {
	Epsilon     float64
	MaxTicks    int
	MaxDuration time.Duration
}

// Done implements Doner.
func (d DefaultDoner) Done(s *SAState) bool {
	if d.MaxTicks > 0 && s.Ticks >= d.MaxTicks {
		return true
	}
	if d.MaxDuration > 0 && s.Elapsed >= d.MaxDuration {
		return true
	}
	if s.Objective <= 0 {
		return true
	}
	scale := s.Objective / float64(max(s.NumChannels, 1))
	return s.Temperature < orDefault(d.Epsilon, DefaultDoneEpsilon)*scale
}

// DeviationDoner stops once a tick's objective deviation falls under
// Tolerance, which means the search has frozen.
type DeviationDoner struct {
	Tolerance float64
	MaxTicks  int
}

// Done implements Doner.
func (d DeviationDoner) Done(s *SAState) bool {
	if d.MaxTicks > 0 && s.Ticks >= d.MaxTicks {
		return true
	}
	return s.Ticks > 0 && s.Deviation <= d.Tolerance
}
