// Package metrics exposes engine progress as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/observe"
)

// Recorder is an observe.Observer that keeps Prometheus metrics current.
type Recorder struct {
	temperature   prometheus.Gauge
	limit         prometheus.Gauge
	objective     prometheus.Gauge
	bestObjective prometheus.Gauge
	ticks         *prometheus.CounterVec
	moves         *prometheus.CounterVec
	stalls        prometheus.Counter

	passes        prometheus.Counter
	presentFactor prometheus.Gauge
	congested     *prometheus.GaugeVec
	converged     prometheus.Gauge

	placementSeconds prometheus.Histogram
	routingSeconds   prometheus.Histogram
	routeLength      prometheus.Histogram
}

var _ observe.Observer = (*Recorder)(nil)

// NewRecorder creates the metrics and registers them with registerer.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridmapper_placement_temperature",
			Help: "Annealing temperature after the last tick",
		}),
		limit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridmapper_placement_move_limit",
			Help: "Move-distance limit after the last tick",
		}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridmapper_placement_objective",
			Help: "Placement objective at the last tick boundary",
		}),
		bestObjective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridmapper_placement_best_objective",
			Help: "Best placement objective seen at a tick boundary",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridmapper_placement_ticks_total",
			Help: "Schedule ticks run, by phase",
		}, []string{"phase"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridmapper_placement_moves_total",
			Help: "Move attempts, by outcome",
		}, []string{"result"}),
		stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridmapper_placement_stalls_total",
			Help: "Move attempts that found no legal move within the retry budget",
		}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridmapper_routing_passes_total",
			Help: "Pathfinder passes run",
		}),
		presentFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridmapper_routing_present_factor",
			Help: "Present-congestion factor of the last pass",
		}),
		congested: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridmapper_routing_congested_elements",
			Help: "Elements over capacity after the last pass, by kind",
		}, []string{"kind"}),
		converged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridmapper_routing_converged",
			Help: "1 when the last pass left no congestion",
		}),
		placementSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridmapper_placement_duration_seconds",
			Help:    "Wall-clock time of placement runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		routingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridmapper_routing_duration_seconds",
			Help:    "Wall-clock time of routing runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		routeLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridmapper_route_length_links",
			Help:    "Routed channel length in link-length units",
			Buckets: prometheus.LinearBuckets(1, 1, 16),
		}),
	}

	registerer.MustRegister(
		r.temperature, r.limit, r.objective, r.bestObjective,
		r.ticks, r.moves, r.stalls,
		r.passes, r.presentFactor, r.congested, r.converged,
		r.placementSeconds, r.routingSeconds, r.routeLength,
	)
	return r
}

// PlacementTick updates the annealing gauges and counters.
func (r *Recorder) PlacementTick(_ context.Context, t observe.TickReport) {
	r.temperature.Set(t.Temperature)
	r.limit.Set(t.Limit)
	r.objective.Set(t.Objective)
	r.bestObjective.Set(t.BestObjective)
	r.ticks.WithLabelValues(string(t.Phase)).Inc()
	r.moves.WithLabelValues("accepted").Add(float64(t.Accepted))
	r.moves.WithLabelValues("rejected").Add(float64(t.Moves - t.Accepted))
	r.stalls.Add(float64(t.Stalls))
}

// RoutingPass updates the routing gauges and counters.
func (r *Recorder) RoutingPass(_ context.Context, p observe.PassReport) {
	r.passes.Inc()
	r.presentFactor.Set(p.PresentFactor)
	r.congested.WithLabelValues("link").Set(float64(p.CongestedLinks))
	r.congested.WithLabelValues("resource").Set(float64(p.CongestedNodes))
	if p.Converged {
		r.converged.Set(1)
	} else {
		r.converged.Set(0)
	}
}

// RecordMap records the timings and link-length histogram of a finished
// Map.
func (r *Recorder) RecordMap(m *mapping.Map) {
	md := m.Metadata
	if md.PlacementTime > 0 {
		r.placementSeconds.Observe(md.PlacementTime.Seconds())
	}
	if md.RoutingTime > 0 {
		r.routingSeconds.Observe(md.RoutingTime.Seconds())
	}
	for length, count := range md.LinkHistogram {
		for range count {
			r.routeLength.Observe(float64(length))
		}
	}
}
