package place

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/taskgraph"
	"github.com/vk/gridmapper/internal/testutil"
)

func newRNG(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }

func TestNewProblem_Capacity(t *testing.T) {
	t.Run("oversubscribed class", func(t *testing.T) {
		_, err := NewProblem(testutil.Pipeline(t, 5), testutil.Line(t, 3))
		var capErr *mapperr.CapacityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, arch.ClassTile, capErr.Class)
		assert.Equal(t, 5, capErr.Tasks)
		assert.Equal(t, 3, capErr.Resources)
		assert.ErrorIs(t, err, mapperr.ErrCapacity)
	})

	t.Run("missing class", func(t *testing.T) {
		b := taskgraph.NewBuilder("app")
		_, _ = b.AddTask("m", arch.ClassMemory, "")
		tg, err := b.Build()
		require.NoError(t, err)

		_, err = NewProblem(tg, testutil.Line(t, 2))
		assert.ErrorIs(t, err, mapperr.ErrCapacity)
	})

	fixedCases := []struct {
		name    string
		fixed   []string
		class   string
		wantErr string
	}{
		{name: "unknown resource", fixed: []string{"nope"}, class: arch.ClassMemory, wantErr: "unknown resource"},
		{name: "wrong class", fixed: []string{"tile_0_0"}, class: arch.ClassMemory, wantErr: "of class \"tile\""},
		{name: "double pin", fixed: []string{"mem0", "mem0"}, class: arch.ClassMemory, wantErr: "both pinned"},
	}
	for _, tc := range fixedCases {
		t.Run(tc.name, func(t *testing.T) {
			b := taskgraph.NewBuilder("app")
			for i, f := range tc.fixed {
				_, err := b.AddTask(string(rune('a'+i)), tc.class, f)
				require.NoError(t, err)
			}
			tg, err := b.Build()
			require.NoError(t, err)

			_, err = NewProblem(tg, testutil.Mixed(t))
			assert.ErrorIs(t, err, mapperr.ErrCapacity)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestProblem_InitializeHonoursFixedTasks(t *testing.T) {
	rg := testutil.Mixed(t)
	b := taskgraph.NewBuilder("app")
	_, _ = b.AddTask("in", arch.ClassMemory, "mem1")
	_, _ = b.AddTask("a", arch.ClassTile, "")
	_, _ = b.AddTask("b", arch.ClassTile, "")
	_, _ = b.AddChannel(taskgraph.ChannelSpec{Source: "in", Sinks: []string{"a", "b"}})
	tg, err := b.Build()
	require.NoError(t, err)

	p, err := NewProblem(tg, rg)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumMovable())
	assert.True(t, p.IsFixed(0))

	for seed := range uint64(10) {
		p.Initialize(newRNG(seed))
		res := p.Resources()
		mem1, _ := rg.Lookup("mem1")
		assert.Equal(t, mem1, res[0])
		assert.NotEqual(t, res[1], res[2])
		assert.Equal(t, arch.ClassTile, rg.Resource(res[1]).Class)
		assert.Equal(t, arch.ClassTile, rg.Resource(res[2]).Class)
		assert.Equal(t, p.TotalCost(), p.Objective())
	}
}

func TestProblem_DeltaMatchesFullCost(t *testing.T) {
	p, err := NewProblem(testutil.RandomTaskGraph(t, 12, 30, 7), testutil.Mesh(t, 4, 4, 1))
	require.NoError(t, err)
	rng := newRNG(3)
	p.Initialize(rng)

	gen := NewSearchMoveGenerator()
	applied := 0
	for i := range 2000 {
		mv, ok := gen.Next(p, p.Dist.Diameter(), rng)
		if !ok {
			continue
		}
		before := p.Objective()
		delta, u := p.Apply(mv)
		require.InDelta(t, p.TotalCost(), p.Objective(), 1e-9, "after apply %d", i)
		if i%2 == 0 {
			p.Revert(u, delta)
			require.InDelta(t, before, p.Objective(), 1e-9)
			require.InDelta(t, p.TotalCost(), p.Objective(), 1e-9, "after revert %d", i)
		}
		applied++
	}
	assert.Greater(t, applied, 1000)

	// Occupancy stays a bijection between tasks and their sites.
	for task := range p.Tasks.NumTasks() {
		assert.Equal(t, task, p.Occupant(p.Site(task)))
	}
}

func TestProblem_SnapshotRestore(t *testing.T) {
	p, err := NewProblem(testutil.Pipeline(t, 4), testutil.Mesh(t, 3, 3, 1))
	require.NoError(t, err)
	rng := newRNG(1)
	p.Initialize(rng)
	snap := p.Snapshot(nil)
	obj := p.Objective()

	gen := NewSearchMoveGenerator()
	for range 50 {
		if mv, ok := gen.Next(p, p.Dist.Diameter(), rng); ok {
			p.Apply(mv)
		}
	}
	p.Restore(snap)
	assert.Equal(t, snap, p.Snapshot(nil))
	assert.Equal(t, obj, p.Objective())
}

func TestProblem_Load(t *testing.T) {
	rg := testutil.Line(t, 4)
	p, err := NewProblem(testutil.Pipeline(t, 3), rg)
	require.NoError(t, err)

	require.NoError(t, p.Load([]arch.ResourceID{0, 1, 3}))
	assert.Equal(t, 3.0, p.Objective())
	assert.Equal(t, []arch.ResourceID{0, 1, 3}, p.Resources())
	assert.Equal(t, -1, p.Occupant(2))
}
