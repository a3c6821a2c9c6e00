package mapping

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/taskgraph"
	"github.com/vk/gridmapper/internal/testutil"
)

func TestNew(t *testing.T) {
	m := New(testutil.Pipeline(t, 2), testutil.Line(t, 4))
	assert.NotEmpty(t, m.Metadata.RunID)
	assert.False(t, m.IsPlaced())
	assert.False(t, m.IsRouted())
	assert.Equal(t, arch.None, m.Location(0))
	assert.NotNil(t, m.Metadata.LinkHistogram)
}

func TestSetPlacement(t *testing.T) {
	rg := testutil.Line(t, 4)

	t.Run("valid placement", func(t *testing.T) {
		m := New(testutil.Pipeline(t, 2), rg)
		require.NoError(t, m.SetPlacement([]arch.ResourceID{2, 3}))
		assert.True(t, m.IsPlaced())
		assert.Equal(t, arch.ResourceID(3), m.Location(1))
		assert.NoError(t, m.CheckPlacement())

		// The returned slice is a copy.
		p := m.Placement()
		p[0] = 0
		assert.Equal(t, arch.ResourceID(2), m.Location(0))
	})

	t.Run("error cases", func(t *testing.T) {
		m := New(testutil.Pipeline(t, 2), rg)
		assert.ErrorContains(t, m.SetPlacement([]arch.ResourceID{1}), "1 entries for 2 tasks")
		assert.ErrorContains(t, m.SetPlacement([]arch.ResourceID{1, 1}), "share resource")
		assert.ErrorContains(t, m.SetPlacement([]arch.ResourceID{1, arch.None}), "is not placed")
		assert.ErrorContains(t, m.SetPlacement([]arch.ResourceID{1, 99}), "unknown resource")
		assert.False(t, m.IsPlaced())
	})

	t.Run("class and fixed mismatches", func(t *testing.T) {
		b := arch.NewBuilder("mixed")
		_, _ = b.AddResource(arch.Resource{Name: "t0", Class: arch.ClassTile, Routable: true})
		_, _ = b.AddResource(arch.Resource{Name: "m0", Class: arch.ClassMemory})
		_, _ = b.AddResource(arch.Resource{Name: "m1", Class: arch.ClassMemory})
		mixed, err := b.Build()
		require.NoError(t, err)

		tb := taskgraph.NewBuilder("app")
		_, _ = tb.AddTask("compute", arch.ClassTile, "")
		_, _ = tb.AddTask("store", arch.ClassMemory, "m1")
		tg, err := tb.Build()
		require.NoError(t, err)

		m := New(tg, mixed)
		assert.ErrorContains(t, m.SetPlacement([]arch.ResourceID{1, 2}), "placed on \"m0\" of class \"memory\"")
		assert.ErrorContains(t, m.SetPlacement([]arch.ResourceID{0, 1}), "expected \"m1\"")
		assert.NoError(t, m.SetPlacement([]arch.ResourceID{0, 2}))
	})
}

func TestRouting(t *testing.T) {
	rg := testutil.Line(t, 3)
	m := New(testutil.Pipeline(t, 2), rg)
	require.NoError(t, m.SetPlacement([]arch.ResourceID{0, 2}))

	l01, ok := rg.LinkBetween(0, 1)
	require.True(t, ok)
	l12, ok := rg.LinkBetween(1, 2)
	require.True(t, ok)

	route := &Route{Channel: 0, Links: []arch.LinkID{l01, l12}, Paths: [][]arch.LinkID{{l01, l12}}}
	assert.ErrorContains(t, m.SetRouting(nil, true), "0 entries for 1 channels")
	require.NoError(t, m.SetRouting([]*Route{route}, true))
	assert.True(t, m.IsRouted())
	assert.True(t, m.RoutingValid())

	assert.Equal(t, 2, route.Length(rg))
	assert.Equal(t, []arch.ResourceID{0, 1, 2}, route.Hops(rg, 0))
	assert.Equal(t, []arch.ResourceID{1}, route.Intermediates(rg, []arch.ResourceID{0, 2}))
	assert.Equal(t, map[int]int{2: 1}, Histogram(rg, m.Routes()))

	clone := route.Clone()
	if diff := cmp.Diff(route, clone); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}
	clone.Paths[0][0] = 99
	assert.Equal(t, l01, route.Paths[0][0])

	report := m.Report()
	assert.Equal(t, map[string]string{"t0": "tile_0_0", "t1": "tile_0_2"}, report.Placement)
	assert.Equal(t, [][]string{{"tile_0_0->tile_0_1", "tile_0_1->tile_0_2"}}, report.Routes["channel0"])

	// A new placement invalidates the routing.
	require.NoError(t, m.SetPlacement([]arch.ResourceID{0, 1}))
	assert.False(t, m.IsRouted())
	assert.False(t, m.RoutingValid())
}

func TestAcquire(t *testing.T) {
	m := New(testutil.Pipeline(t, 2), testutil.Line(t, 2))
	release, err := m.Acquire()
	require.NoError(t, err)

	_, err = m.Acquire()
	assert.True(t, errors.Is(err, mapperr.ErrMapBusy))

	release()
	release2, err := m.Acquire()
	require.NoError(t, err)
	release2()
}

func TestHistogramLengths(t *testing.T) {
	assert.Equal(t, []int{1, 3, 7}, HistogramLengths(map[int]int{7: 1, 1: 4, 3: 2}))
}
