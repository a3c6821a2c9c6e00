package place

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/ctxlog"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/observe"
	"github.com/vk/gridmapper/internal/taskgraph"
	"gonum.org/v1/gonum/stat"
)

// Run creates a Map for tg on rg and anneals it.
func Run(ctx context.Context, tg *taskgraph.Graph, rg *arch.Graph, cfg Config) (*mapping.Map, *SAState, error) {
	m := mapping.New(tg, rg)
	state, err := Place(ctx, m, cfg)
	return m, state, err
}

// Place anneals the placement of m in place and returns the final state.
//
// On cancellation the Map holds the best placement seen at a tick boundary
// and the context error is returned along with the state.
func Place(ctx context.Context, m *mapping.Map, cfg Config) (*SAState, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	release, err := m.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	logger := ctxlog.FromContext(ctx).With("run_id", m.Metadata.RunID)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	structStart, structAlloc := time.Now(), ms.TotalAlloc
	p, err := NewProblem(m.Tasks, m.Arch)
	if err != nil {
		return nil, err
	}
	if g, ok := cfg.MoveGenerator.(*CachedMoveGenerator); ok {
		g.build(p)
	}
	runtime.ReadMemStats(&ms)
	m.Metadata.PlacementStructTime = time.Since(structStart)
	m.Metadata.PlacementStructBytes = ms.TotalAlloc - structAlloc

	e := &engine{cfg: cfg, m: m, p: p, logger: logger, start: time.Now(), startAlloc: ms.TotalAlloc}
	if err := e.init(); err != nil {
		return nil, err
	}
	logger.Info("Placement started.",
		"seed", e.state.Seed,
		"tasks", m.Tasks.NumTasks(),
		"movable", p.NumMovable(),
		"sites", len(p.Dist.Sites()),
		"metric", p.Dist.Metric(),
		"objective", e.state.Objective,
		"resumed", cfg.Resume != nil,
	)

	if err := e.anneal(ctx); err != nil {
		return e.finish(err)
	}
	return e.finish(nil)
}

type engine struct {
	cfg    Config
	m      *mapping.Map
	p      *Problem
	logger *slog.Logger

	src   *rand.PCG
	rng   *rand.Rand
	state *SAState

	best       []int
	bestObj    float64
	samples    []float64
	tickStalls int

	start      time.Time
	startAlloc uint64
	elapsed    time.Duration // carried over from a resumed state
}

func (e *engine) init() error {
	p := e.p
	if r := e.cfg.Resume; r != nil {
		if !e.m.IsPlaced() {
			return mapperr.NewConfigError("resume", "map has no placement to resume from")
		}
		if err := e.m.CheckPlacement(); err != nil {
			return fmt.Errorf("resuming placement: %w", err)
		}
		if err := p.Load(e.m.Placement()); err != nil {
			return fmt.Errorf("resuming placement: %w", err)
		}
		e.state = r.Clone()
		src, err := e.state.loadRand()
		if err != nil {
			return err
		}
		e.src = src
		e.elapsed = r.Elapsed
	} else {
		var seed uint64
		if e.cfg.Seed != nil {
			seed = *e.cfg.Seed
		} else {
			seed = rand.Uint64()
		}
		e.state = &SAState{Seed: seed, Temperature: e.cfg.InitialTemperature}
		e.src = rand.NewPCG(seed, seed)
	}
	e.rng = rand.New(e.src)
	if e.cfg.Resume == nil {
		p.Initialize(e.rng)
	}

	s := e.state
	s.MaxLimit = p.Dist.Diameter()
	s.NumChannels = p.NumChannels()
	if e.cfg.Resume == nil || s.Limit == 0 {
		s.Limit = s.MaxLimit
	}
	s.Objective = p.Objective()
	if e.cfg.Resume == nil || s.BestObjective > s.Objective {
		s.BestObjective = s.Objective
	}
	e.best = p.Snapshot(nil)
	e.bestObj = s.Objective
	e.m.Metadata.Seed = s.Seed
	return nil
}

func (e *engine) anneal(ctx context.Context) error {
	s := e.state
	if e.p.NumMovable() == 0 || e.p.NumChannels() == 0 {
		e.logger.Debug("Nothing to anneal.", "movable", e.p.NumMovable(), "channels", e.p.NumChannels())
		return nil
	}
	if !e.p.HasMoves(s.MaxLimit) {
		e.logger.Info("No movable task has a legal destination, skipping anneal.", "movable", e.p.NumMovable())
		return nil
	}

	if !s.Warmed {
		s.Limit = s.MaxLimit
		for !s.Warmed {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.WarmTicks >= e.cfg.MaxWarmTicks {
				e.logger.Info("Warm-up tick budget exhausted, starting anneal.", "warm_ticks", s.WarmTicks, "temperature", s.Temperature)
				s.Warmed = true
				break
			}
			e.tick()
			s.WarmTicks++
			s.Warmed = e.cfg.Warmer.Warm(s)
			e.report(ctx, observe.PhaseWarm, s.WarmTicks)
		}
		e.logger.Debug("Warm-up finished.", "warm_ticks", s.WarmTicks, "temperature", s.Temperature)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.tick()
		e.cfg.Cooler.Cool(s)
		if !(s.Temperature > 0) {
			s.Temperature = math.SmallestNonzeroFloat64
		}
		e.cfg.Limiter.Limit(s)
		s.Ticks++
		done := e.cfg.Doner.Done(s)
		e.report(ctx, observe.PhaseAnneal, s.Ticks)
		if done {
			return nil
		}
	}
}

// tick runs one batch of MoveAttempts move attempts at the current
// temperature and limit, then folds the results into the state. Attempts
// that find no legal move are stalls and do not count as moves.
func (e *engine) tick() {
	s, p := e.state, e.p
	s.TickMoves, s.TickAccepted = 0, 0
	e.tickStalls = 0
	e.samples = e.samples[:0]

	for range e.cfg.MoveAttempts {
		mv, ok := e.propose()
		if !ok {
			e.tickStalls++
			continue
		}
		s.TickMoves++
		delta, u := p.Apply(mv)
		if delta <= 0 || e.rng.Float64() < math.Exp(-delta/s.Temperature) {
			s.TickAccepted++
		} else {
			p.Revert(u, delta)
		}
		e.samples = append(e.samples, p.Objective())
	}

	p.Resync()
	s.Objective = p.Objective()
	s.TotalMoves += int64(s.TickMoves)
	s.TotalAccepted += int64(s.TickAccepted)
	s.Stalls += int64(e.tickStalls)
	s.Deviation = 0
	if len(e.samples) > 1 {
		_, s.Deviation = stat.MeanStdDev(e.samples, nil)
	}
	if s.Objective < e.bestObj {
		e.best = p.Snapshot(e.best)
		e.bestObj = s.Objective
	}
	s.BestObjective = min(s.BestObjective, e.bestObj)
	s.Elapsed = e.elapsed + time.Since(e.start)
	if e.tickStalls > 0 {
		e.logger.Debug("No legal move found within retry budget.", "stalls", e.tickStalls, "limit", s.Limit)
	}
}

func (e *engine) propose() (Move, bool) {
	for range e.cfg.MaxMoveRetries {
		if mv, ok := e.cfg.MoveGenerator.Next(e.p, e.state.Limit, e.rng); ok {
			return mv, true
		}
	}
	return Move{}, false
}

func (e *engine) report(ctx context.Context, phase observe.Phase, tick int) {
	s := e.state
	e.cfg.Observer.PlacementTick(ctx, observe.TickReport{
		RunID:         e.m.Metadata.RunID,
		Phase:         phase,
		Tick:          tick,
		Temperature:   s.Temperature,
		Limit:         s.Limit,
		Objective:     s.Objective,
		BestObjective: s.BestObjective,
		Moves:         s.TickMoves,
		Accepted:      s.TickAccepted,
		Stalls:        e.tickStalls,
		Deviation:     s.Deviation,
		Elapsed:       s.Elapsed,
	})
}

// finish installs the best tick-boundary placement into the Map, records
// metadata and snapshots the generator. cause is returned unchanged when the
// bookkeeping itself succeeds.
func (e *engine) finish(cause error) (*SAState, error) {
	s, p := e.state, e.p
	if e.bestObj < p.Objective() {
		p.Restore(e.best)
	}
	s.Objective = p.Objective()
	s.BestObjective = min(s.BestObjective, s.Objective)
	s.Elapsed = e.elapsed + time.Since(e.start)
	if err := s.saveRand(e.src); err != nil {
		return s, err
	}
	if err := e.m.SetPlacement(p.Resources()); err != nil {
		return s, fmt.Errorf("storing placement: %w", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	e.m.Metadata.PlacementTime = time.Since(e.start)
	e.m.Metadata.PlacementBytes = ms.TotalAlloc - e.startAlloc
	e.m.Metadata.PlacementObjective = s.Objective

	if cause != nil {
		e.logger.Info("Placement interrupted, keeping best placement.", "objective", s.Objective, "ticks", s.Ticks, "error", cause)
		return s, cause
	}
	e.logger.Info("Placement finished.",
		"objective", s.Objective,
		"ticks", s.Ticks,
		"warm_ticks", s.WarmTicks,
		"moves", s.TotalMoves,
		"accepted", s.TotalAccepted,
		"stalls", s.Stalls,
		"duration", e.m.Metadata.PlacementTime,
	)
	return s, nil
}
