package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/observe"
	gmtestutil "github.com/vk/gridmapper/internal/testutil"
)

func TestRecorder_PlacementTick(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	ctx := context.Background()

	r.PlacementTick(ctx, observe.TickReport{Phase: observe.PhaseWarm, Temperature: 2, Limit: 6, Objective: 30, BestObjective: 28, Moves: 100, Accepted: 97})
	r.PlacementTick(ctx, observe.TickReport{Phase: observe.PhaseAnneal, Temperature: 1, Limit: 4, Objective: 20, BestObjective: 20, Moves: 100, Accepted: 40, Stalls: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.temperature))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.limit))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.objective))
	assert.Equal(t, 20.0, testutil.ToFloat64(r.bestObjective))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ticks.WithLabelValues("warm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ticks.WithLabelValues("anneal")))
	assert.Equal(t, 137.0, testutil.ToFloat64(r.moves.WithLabelValues("accepted")))
	assert.Equal(t, 63.0, testutil.ToFloat64(r.moves.WithLabelValues("rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.stalls))
}

func TestRecorder_RoutingPass(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	ctx := context.Background()

	r.RoutingPass(ctx, observe.PassReport{Iteration: 1, PresentFactor: 0.5, CongestedLinks: 2, CongestedNodes: 1})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.converged))
	r.RoutingPass(ctx, observe.PassReport{Iteration: 2, PresentFactor: 0.75, Converged: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.passes))
	assert.Equal(t, 0.75, testutil.ToFloat64(r.presentFactor))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.congested.WithLabelValues("link")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.converged))
}

func TestRecorder_RecordMap(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	m := mapping.New(gmtestutil.Pipeline(t, 2), gmtestutil.Line(t, 2))
	m.Metadata.PlacementTime = 40 * time.Millisecond
	m.Metadata.RoutingTime = 2 * time.Millisecond
	m.Metadata.LinkHistogram = map[int]int{1: 3, 2: 1}
	r.RecordMap(m)

	expected := `
# HELP gridmapper_route_length_links Routed channel length in link-length units
# TYPE gridmapper_route_length_links histogram
gridmapper_route_length_links_bucket{le="1"} 3
gridmapper_route_length_links_bucket{le="2"} 4
gridmapper_route_length_links_bucket{le="3"} 4
gridmapper_route_length_links_bucket{le="4"} 4
gridmapper_route_length_links_bucket{le="5"} 4
gridmapper_route_length_links_bucket{le="6"} 4
gridmapper_route_length_links_bucket{le="7"} 4
gridmapper_route_length_links_bucket{le="8"} 4
gridmapper_route_length_links_bucket{le="9"} 4
gridmapper_route_length_links_bucket{le="10"} 4
gridmapper_route_length_links_bucket{le="11"} 4
gridmapper_route_length_links_bucket{le="12"} 4
gridmapper_route_length_links_bucket{le="13"} 4
gridmapper_route_length_links_bucket{le="14"} 4
gridmapper_route_length_links_bucket{le="15"} 4
gridmapper_route_length_links_bucket{le="16"} 4
gridmapper_route_length_links_bucket{le="+Inf"} 4
gridmapper_route_length_links_sum 5
gridmapper_route_length_links_count 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gridmapper_route_length_links"))
	assert.Equal(t, 1, testutil.CollectAndCount(r.placementSeconds))
}

func TestNewRecorder_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
