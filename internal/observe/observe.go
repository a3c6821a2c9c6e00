// Package observe defines the progress hooks the placement and routing
// engines call at schedule-tick and routing-pass granularity.
package observe

import (
	"context"
	"time"

	"github.com/vk/gridmapper/internal/ctxlog"
)

// Phase names the annealing phase a tick belongs to.
type Phase string

const (
	PhaseWarm   Phase = "warm"
	PhaseAnneal Phase = "anneal"
)

// TickReport summarises one placement schedule tick.
type TickReport struct {
	RunID         string        `json:"run_id"`
	Phase         Phase         `json:"phase"`
	Tick          int           `json:"tick"`
	Temperature   float64       `json:"temperature"`
	Limit         float64       `json:"limit"`
	Objective     float64       `json:"objective"`
	BestObjective float64       `json:"best_objective"`
	Moves         int           `json:"moves"`
	Accepted      int           `json:"accepted"`
	Stalls        int           `json:"stalls"`
	Deviation     float64       `json:"deviation"`
	Elapsed       time.Duration `json:"elapsed"`
}

// AcceptanceRatio returns accepted / moves, 0 for an empty tick.
func (r TickReport) AcceptanceRatio() float64 {
	if r.Moves == 0 {
		return 0
	}
	return float64(r.Accepted) / float64(r.Moves)
}

// PassReport summarises one routing pass.
type PassReport struct {
	RunID          string        `json:"run_id"`
	Iteration      int           `json:"iteration"`
	PresentFactor  float64       `json:"present_factor"`
	CongestedLinks int           `json:"congested_links"`
	CongestedNodes int           `json:"congested_nodes"`
	TotalCost      float64       `json:"total_cost"`
	Converged      bool          `json:"converged"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Observer receives engine progress. Implementations must be cheap; they
// run on the engine goroutine.
type Observer interface {
	PlacementTick(ctx context.Context, r TickReport)
	RoutingPass(ctx context.Context, r PassReport)
}

// Multi fans reports out to several observers, in order.
type Multi []Observer

// PlacementTick forwards r to every observer.
func (m Multi) PlacementTick(ctx context.Context, r TickReport) {
	for _, o := range m {
		if o != nil {
			o.PlacementTick(ctx, r)
		}
	}
}

// RoutingPass forwards r to every observer.
func (m Multi) RoutingPass(ctx context.Context, r PassReport) {
	for _, o := range m {
		if o != nil {
			o.RoutingPass(ctx, r)
		}
	}
}

// Nop ignores every report.
type Nop struct{}

// PlacementTick implements Observer.
func (Nop) PlacementTick(context.Context, TickReport) {}

// RoutingPass implements Observer.
func (Nop) RoutingPass(context.Context, PassReport) {}

// LogObserver writes reports to the context logger at debug level.
type LogObserver struct{}

// PlacementTick logs r at debug level.
func (LogObserver) PlacementTick(ctx context.Context, r TickReport) {
	ctxlog.FromContext(ctx).Debug("Placement tick.",
		"phase", r.Phase,
		"tick", r.Tick,
		"temperature", r.Temperature,
		"limit", r.Limit,
		"objective", r.Objective,
		"best_objective", r.BestObjective,
		"acceptance", r.AcceptanceRatio(),
		"stalls", r.Stalls,
	)
}

// RoutingPass logs r at debug level.
func (LogObserver) RoutingPass(ctx context.Context, r PassReport) {
	ctxlog.FromContext(ctx).Debug("Routing pass.",
		"iteration", r.Iteration,
		"present_factor", r.PresentFactor,
		"congested_links", r.CongestedLinks,
		"congested_resources", r.CongestedNodes,
		"total_cost", r.TotalCost,
	)
}

// Recorder stores every report it receives. It is meant for tests and is
// not safe for concurrent use.
type Recorder struct {
	Ticks  []TickReport
	Passes []PassReport
}

// PlacementTick appends t to Ticks.
func (r *Recorder) PlacementTick(_ context.Context, t TickReport) { r.Ticks = append(r.Ticks, t) }

// RoutingPass appends p to Passes.
func (r *Recorder) RoutingPass(_ context.Context, p PassReport) { r.Passes = append(r.Passes, p) }
