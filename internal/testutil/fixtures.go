package testutil

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/taskgraph"
)

// Mesh builds a rows x cols tile mesh with the given link capacity.
func Mesh(t testing.TB, rows, cols, linkCapacity int) *arch.Graph {
	t.Helper()
	b := arch.NewBuilder(fmt.Sprintf("mesh%dx%d", rows, cols))
	require.NoError(t, b.AddMesh(arch.MeshSpec{Rows: rows, Cols: cols, LinkCapacity: linkCapacity}))
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// Line builds n tiles connected in a row.
func Line(t testing.TB, n int) *arch.Graph {
	t.Helper()
	return Mesh(t, 1, n, 1)
}

// Pipeline builds n tile tasks named t0..t(n-1) with a channel between
// each consecutive pair.
func Pipeline(t testing.TB, n int) *taskgraph.Graph {
	t.Helper()
	b := taskgraph.NewBuilder(fmt.Sprintf("pipeline%d", n))
	for i := 0; i < n; i++ {
		_, err := b.AddTask(fmt.Sprintf("t%d", i), arch.ClassTile, "")
		require.NoError(t, err)
	}
	for i := 0; i+1 < n; i++ {
		_, err := b.AddChannel(taskgraph.ChannelSpec{
			Source: fmt.Sprintf("t%d", i),
			Sinks:  []string{fmt.Sprintf("t%d", i+1)},
		})
		require.NoError(t, err)
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// RandomTaskGraph builds n tile tasks and the requested number of random
// single-sink channels, reproducibly from seed.
func RandomTaskGraph(t testing.TB, n, channels int, seed uint64) *taskgraph.Graph {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := taskgraph.NewBuilder(fmt.Sprintf("random%d", n))
	for i := 0; i < n; i++ {
		_, err := b.AddTask(fmt.Sprintf("t%d", i), arch.ClassTile, "")
		require.NoError(t, err)
	}
	for i := 0; i < channels; i++ {
		src := rng.IntN(n)
		dst := rng.IntN(n - 1)
		if dst >= src {
			dst++
		}
		_, err := b.AddChannel(taskgraph.ChannelSpec{
			Source: fmt.Sprintf("t%d", src),
			Sinks:  []string{fmt.Sprintf("t%d", dst)},
		})
		require.NoError(t, err)
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// Mixed builds a 3x3 tile mesh with two non-routable memories, mem0 attached
// to tile_0_0 and mem1 attached to tile_2_2. The memories have no
// coordinates, so distances use the graph metric.
func Mixed(t testing.TB) *arch.Graph {
	t.Helper()
	b := arch.NewBuilder("mixed")
	require.NoError(t, b.AddMesh(arch.MeshSpec{Rows: 3, Cols: 3, LinkCapacity: 1}))
	for _, m := range []struct{ name, tile string }{{"mem0", "tile_0_0"}, {"mem1", "tile_2_2"}} {
		_, err := b.AddResource(arch.Resource{Name: m.name, Class: arch.ClassMemory})
		require.NoError(t, err)
		_, err = b.AddLink(arch.LinkSpec{From: m.name, To: m.tile, Bidirectional: true})
		require.NoError(t, err)
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}
