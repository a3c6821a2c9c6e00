package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		b := NewBuilder("app")
		a, err := b.AddTask("a", "tile", "")
		require.NoError(t, err)
		_, err = b.AddTask("b", "tile", "")
		require.NoError(t, err)
		_, err = b.AddTask("in", "memory", "mem0")
		require.NoError(t, err)

		c0, err := b.AddChannel(ChannelSpec{Source: "in", Sinks: []string{"a", "b"}})
		require.NoError(t, err)
		c1, err := b.AddChannel(ChannelSpec{Name: "ab", Source: "a", Sinks: []string{"b"}, Weight: 3, LinkClasses: []string{"circuit"}})
		require.NoError(t, err)

		g, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, 3, g.NumTasks())
		assert.Equal(t, 2, g.NumChannels())
		assert.Equal(t, "channel0", g.Channel(c0).Name)
		assert.Equal(t, 1.0, g.Channel(c0).Weight)
		assert.Equal(t, 3.0, g.Channel(c1).Weight)
		assert.True(t, g.Task(2).IsFixed())
		assert.False(t, g.Task(a).IsFixed())

		assert.Equal(t, []ChannelID{c0, c1}, g.ChannelsOf(a))
		assert.Equal(t, map[string]int{"tile": 2, "memory": 1}, g.ClassDemand())
		assert.Equal(t, []string{"memory", "tile"}, g.Classes())

		assert.True(t, g.Channel(c0).AllowsLinkClass("anything"))
		assert.True(t, g.Channel(c1).AllowsLinkClass("circuit"))
		assert.False(t, g.Channel(c1).AllowsLinkClass("link"))

		id, ok := g.Lookup("b")
		require.True(t, ok)
		assert.Equal(t, "b", g.Task(id).Name)
	})

	t.Run("error cases", func(t *testing.T) {
		b := NewBuilder("app")
		_, err := b.AddTask("", "tile", "")
		assert.ErrorContains(t, err, "name cannot be empty")
		_, err = b.AddTask("a", "", "")
		assert.ErrorContains(t, err, "has no class")
		_, err = b.AddTask("a", "tile", "")
		require.NoError(t, err)
		_, err = b.AddTask("a", "tile", "")
		assert.ErrorContains(t, err, "duplicate task name")
		_, _ = b.AddTask("b", "tile", "")

		_, err = b.AddChannel(ChannelSpec{Source: "dne", Sinks: []string{"a"}})
		assert.ErrorContains(t, err, "source task \"dne\" not found")
		_, err = b.AddChannel(ChannelSpec{Source: "a"})
		assert.ErrorContains(t, err, "has no sinks")
		_, err = b.AddChannel(ChannelSpec{Source: "a", Sinks: []string{"a"}})
		assert.ErrorContains(t, err, "cannot send to itself")
		_, err = b.AddChannel(ChannelSpec{Source: "a", Sinks: []string{"b", "b"}})
		assert.ErrorContains(t, err, "listed twice")
		_, err = b.AddChannel(ChannelSpec{Source: "a", Sinks: []string{"b"}, Weight: -1})
		assert.ErrorContains(t, err, "weight must be > 0")
		_, err = b.AddChannel(ChannelSpec{Name: "x", Source: "a", Sinks: []string{"b"}})
		require.NoError(t, err)
		_, err = b.AddChannel(ChannelSpec{Name: "x", Source: "b", Sinks: []string{"a"}})
		assert.ErrorContains(t, err, "duplicate channel name")
	})

	t.Run("empty graph is rejected", func(t *testing.T) {
		_, err := NewBuilder("empty").Build()
		assert.ErrorContains(t, err, "has no tasks")
	})
}
