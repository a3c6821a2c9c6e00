package route

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/ctxlog"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/observe"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Route assigns every channel of a placed Map to links with Pathfinder
// negotiated congestion, then runs the post-routing checks.
//
// The result is returned even on failure. A congested result comes with a
// *mapperr.ConvergenceError; failed checks add a *mapperr.ConsistencyError.
// The Map's routing is only marked valid when routing converged and every
// check passed. Each call starts from empty occupancy and fresh history, so
// routing the same placement twice yields the same routes.
func Route(ctx context.Context, m *mapping.Map, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	release, err := m.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := m.CheckPlacement(); err != nil {
		return nil, fmt.Errorf("routing requires a valid placement: %w", err)
	}
	logger := ctxlog.FromContext(ctx).With("run_id", m.Metadata.RunID)
	logger.Info("Running Pathfinder routing.", "channels", m.Tasks.NumChannels(), "batched", cfg.Batched, "max_iterations", cfg.MaxIterations)

	m.ClearRouting()
	start := time.Now()
	r := newRouter(m, cfg.PresentFactor)
	res := &Result{}

	var cause error
	for it := 1; it <= cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			cause = err
			break
		}
		var err error
		if cfg.Batched {
			err = r.batchedPass(ctx, cfg.Workers)
		} else {
			err = r.pass()
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				cause = ctxErr
				break
			}
			return nil, err
		}

		res.Iterations = it
		links, nodes := r.overCapacity()
		converged := links+nodes == 0
		if !converged {
			r.updateHistory(cfg.HistoryFactor)
		}
		cfg.Observer.RoutingPass(ctx, observe.PassReport{
			RunID:          m.Metadata.RunID,
			Iteration:      it,
			PresentFactor:  r.pres,
			CongestedLinks: links,
			CongestedNodes: nodes,
			TotalCost:      r.totalCost(),
			Converged:      converged,
			Elapsed:        time.Since(start),
		})
		if converged {
			res.Converged = true
			break
		}
		r.pres *= cfg.PresentGrowth
	}

	m.Metadata.RoutingTime = time.Since(start)
	m.Metadata.RoutingIterations = res.Iterations
	if res.Iterations == 0 {
		return res, cause
	}

	res.Routes = make([]*mapping.Route, len(r.routes))
	for i, route := range r.routes {
		res.Routes[i] = route.Clone()
	}
	res.Histogram = mapping.Histogram(m.Arch, r.routes)
	res.Congested = r.congested()
	res.Stats = computeStats(m, r.routes)
	if err := m.SetRouting(r.routes, false); err != nil {
		return res, err
	}
	m.Metadata.LinkHistogram = res.Histogram
	if cause != nil {
		logger.Info("Routing interrupted, keeping last complete pass.", "iterations", res.Iterations, "error", cause)
		return res, cause
	}

	checks, checkErr := Check(m)
	res.Checks = checks
	if err := m.SetRouting(r.routes, res.Converged && checkErr == nil); err != nil {
		return res, err
	}
	logger.Info("Routing summary.", res.summaryAttrs()...)

	var outErr error
	if !res.Converged {
		outErr = &mapperr.ConvergenceError{Iterations: res.Iterations, Congested: slices.Clone(res.Congested)}
	}
	return res, multierr.Append(outErr, checkErr)
}

// pass rips up and reroutes each channel in ID order, committing each route
// before the next channel is searched.
func (r *router) pass() error {
	for _, c := range r.tg.Channels() {
		if prev := r.routes[c.ID]; prev != nil {
			r.commit(prev, -1)
		}
		route, cost, err := r.search(c, r.view(nil))
		if err != nil {
			return err
		}
		r.routes[c.ID] = route
		r.costs[c.ID] = cost
		r.commit(route, 1)
	}
	return nil
}

// batchedPass searches every channel against the occupancy left by the
// previous pass, then commits all new routes in channel order.
func (r *router) batchedPass(ctx context.Context, workers int) error {
	next := make([]*mapping.Route, len(r.routes))
	costs := make([]float64, len(r.routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, c := range r.tg.Channels() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			route, cost, err := r.search(c, r.view(r.routes[c.ID]))
			if err != nil {
				return err
			}
			next[c.ID] = route
			costs[c.ID] = cost
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, route := range next {
		if prev := r.routes[i]; prev != nil {
			r.commit(prev, -1)
		}
		r.commit(route, 1)
		r.routes[i] = route
	}
	copy(r.costs, costs)
	return nil
}

func (r *router) overCapacity() (links, nodes int) {
	for id, occ := range r.linkOcc {
		if occ > r.g.Link(arch.LinkID(id)).Capacity {
			links++
		}
	}
	for id, occ := range r.resOcc {
		if occ > r.g.Resource(arch.ResourceID(id)).Capacity {
			nodes++
		}
	}
	return links, nodes
}

func (r *router) updateHistory(factor float64) {
	for id, occ := range r.linkOcc {
		if over := occ - r.g.Link(arch.LinkID(id)).Capacity; over > 0 {
			r.linkHist[id] += factor * float64(over)
		}
	}
	for id, occ := range r.resOcc {
		if over := occ - r.g.Resource(arch.ResourceID(id)).Capacity; over > 0 {
			r.resHist[id] += factor * float64(over)
		}
	}
}

func (r *router) totalCost() float64 {
	total := 0.0
	for _, c := range r.costs {
		total += c
	}
	return total
}

// congested lists every over-capacity element with the channels using it.
func (r *router) congested() []mapperr.Congestion {
	linkUsers := make(map[arch.LinkID][]string)
	resUsers := make(map[arch.ResourceID][]string)
	for _, route := range r.routes {
		if route == nil {
			continue
		}
		c := r.tg.Channel(route.Channel)
		for _, l := range route.Links {
			linkUsers[l] = append(linkUsers[l], c.Name)
		}
		for _, res := range route.Intermediates(r.g, r.endpoints(c)) {
			resUsers[res] = append(resUsers[res], c.Name)
		}
	}

	var out []mapperr.Congestion
	for id, occ := range r.linkOcc {
		l := r.g.Link(arch.LinkID(id))
		if occ > l.Capacity {
			out = append(out, mapperr.Congestion{Kind: "link", Name: l.Name, Occupancy: occ, Capacity: l.Capacity, Channels: linkUsers[arch.LinkID(id)]})
		}
	}
	for id, occ := range r.resOcc {
		res := r.g.Resource(arch.ResourceID(id))
		if occ > res.Capacity {
			out = append(out, mapperr.Congestion{Kind: "resource", Name: res.Name, Occupancy: occ, Capacity: res.Capacity, Channels: resUsers[arch.ResourceID(id)]})
		}
	}
	return out
}
